// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package v1 holds the VirtualMachine and VmPool custom resource types
// managed by the manager's control loop.
package v1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// VmState is the user-requested power state of a VirtualMachine.
type VmState string

const (
	// VmStateRunning requests that the runner pod be present and running.
	VmStateRunning VmState = "Running"
	// VmStateStopped requests that the runner pod be absent.
	VmStateStopped VmState = "Stopped"
)

// Condition type names reported in VirtualMachine.Status.Conditions.
const (
	ConditionRunning           = "Running"
	ConditionBooted            = "Booted"
	ConditionConsoleConnected  = "ConsoleConnected"
	ConditionUserLoggedIn      = "UserLoggedIn"
	ConditionVmopAgentConnected = "VmopAgentConnected"
)

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// VirtualMachine is the custom resource a user creates to declare a
// QEMU-backed virtual machine.
type VirtualMachine struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   VirtualMachineSpec   `json:"spec"`
	Status VirtualMachineStatus `json:"status,omitempty"`
}

// VirtualMachineSpec is the subset of the CR spec the manager's core
// reads; the VM's own state block, including its display settings, is
// nested under Vm.
type VirtualMachineSpec struct {
	Vm                  VmSpec            `json:"vm"`
	Pools               []string          `json:"pools,omitempty"`
	LoadBalancerService *LoadBalancerSpec `json:"loadBalancerService,omitempty"`
	CloudInit           CloudInitSpec     `json:"cloudInit,omitempty"`
}

// VmSpec carries the resource shape and power-state request for the VM.
type VmSpec struct {
	State        VmState     `json:"state"`
	MaximumRam   string      `json:"maximumRam"`
	CurrentRam   string      `json:"currentRam"`
	MaximumCpus  int32       `json:"maximumCpus"`
	CurrentCpus  int32       `json:"currentCpus"`
	Disks        []DiskSpec  `json:"disks,omitempty"`
	Display      DisplaySpec `json:"display,omitempty"`
}

// DiskSpec declares one virtual disk, either backed by a fresh PVC
// (VolumeClaimTemplate) or by a read-only CD-ROM image.
type DiskSpec struct {
	VolumeClaimTemplate *corev1.PersistentVolumeClaim `json:"volumeClaimTemplate,omitempty"`
	Cdrom               *CdromSpec                    `json:"cdrom,omitempty"`
}

// CdromSpec references a pre-existing boot/install image.
type CdromSpec struct {
	Image string `json:"image"`
}

// DisplaySpec groups SPICE display settings and the last logged-in user,
// the latter set by the runner once it observes a guest login.
type DisplaySpec struct {
	Spice         SpiceSpec `json:"spice,omitempty"`
	LoggedInUser  string    `json:"loggedInUser,omitempty"`
}

// SpiceSpec controls the generated display-access secret.
type SpiceSpec struct {
	GenerateSecret bool  `json:"generateSecret"`
	Port           int32 `json:"port,omitempty"`
}

// LoadBalancerSpec lets a VM opt out of (empty struct, all fields nil)
// or customize the operator-wide load-balancer defaults.
type LoadBalancerSpec struct {
	Enabled     *bool             `json:"enabled,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// CloudInitSpec carries the metadata document passed through to the
// runner's cloud-init config map.
type CloudInitSpec struct {
	MetaData string `json:"metaData,omitempty"`
}

// VirtualMachineStatus is written by both the manager (conditions,
// assignment, resource mirrors, and consoleUser when it rotates the
// display password) and the runner (booted/console/user
// conditions, consoleUser, displayPasswordSerial, osinfo, runnerVersion).
type VirtualMachineStatus struct {
	Conditions            []metav1.Condition `json:"conditions,omitempty"`
	Ram                    string             `json:"ram,omitempty"`
	Cpus                   int32              `json:"cpus,omitempty"`
	ConsoleUser            string             `json:"consoleUser,omitempty"`
	ConsoleClient          string             `json:"consoleClient,omitempty"`
	LoggedInUser           string             `json:"loggedInUser,omitempty"`
	DisplayPasswordSerial  int64              `json:"displayPasswordSerial,omitempty"`
	Assignment             Assignment         `json:"assignment,omitempty"`
	Osinfo                 string             `json:"osinfo,omitempty"`
	RunnerVersion          string             `json:"runnerVersion,omitempty"`
}

// Assignment records which pool currently owns a VM and who last used it.
type Assignment struct {
	Pool     string       `json:"pool,omitempty"`
	User     string       `json:"user,omitempty"`
	LastUsed *metav1.Time `json:"lastUsed,omitempty"`
}

// GetCondition returns the named condition, or nil if absent. Conditions
// are unique by type, per the VmDefinition invariant.
func (s *VirtualMachineStatus) GetCondition(condType string) *metav1.Condition {
	for i := range s.Conditions {
		if s.Conditions[i].Type == condType {
			return &s.Conditions[i]
		}
	}
	return nil
}

// IsConditionTrue reports whether the named condition is present and True.
func (s *VirtualMachineStatus) IsConditionTrue(condType string) bool {
	c := s.GetCondition(condType)
	return c != nil && c.Status == metav1.ConditionTrue
}

// SetCondition inserts or overwrites the condition by type, preserving
// the unique-by-type invariant.
func (s *VirtualMachineStatus) SetCondition(c metav1.Condition) {
	if existing := s.GetCondition(c.Type); existing != nil {
		*existing = c
		return
	}
	s.Conditions = append(s.Conditions, c)
}

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// VirtualMachineList is a list of VirtualMachine resources.
type VirtualMachineList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []VirtualMachine `json:"items"`
}

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// VmPool is the custom resource declaring a named pool of VMs with
// shared permission and retention policy.
type VmPool struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec VmPoolSpec `json:"spec"`
}

// VmPoolSpec is the user-authored pool policy.
type VmPoolSpec struct {
	Retention          string       `json:"retention,omitempty"`
	Permissions        []Permission `json:"permissions,omitempty"`
	LoginOnAssignment  bool         `json:"loginOnAssignment,omitempty"`
}

// Permission grants a user or role access to pool members.
type Permission struct {
	User  string   `json:"user,omitempty"`
	Role  string   `json:"role,omitempty"`
	May   []string `json:"may,omitempty"`
}

// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object

// VmPoolList is a list of VmPool resources.
type VmPoolList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []VmPool `json:"items"`
}
