// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package bus

import (
	corev1 "k8s.io/api/core/v1"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
)

// VmResourceChanged is published by the VM Monitor on every VM CR
// change it observes, and republished by the Pod Monitor whenever a
// correlated pod event arrives (spec.md §4.3, §4.4, §4.6).
type VmResourceChanged struct {
	Type        observer.EventType
	Vm          *vmoperatorv1.VirtualMachine
	SpecChanged bool
	PodChanged  bool
}

// VMName implements Event.
func (e VmResourceChanged) VMName() string { return e.Vm.Name }

// PodChangedEvent is published on a VM's channel by the Pod Monitor
// (spec.md §4.4); named with an Event suffix to avoid colliding with
// the Pod Monitor's own PodChanged publish step.
type PodChangedEvent struct {
	Name string
	Type observer.EventType
	Pod  *corev1.Pod
}

// VMName implements Event.
func (e PodChangedEvent) VMName() string { return e.Name }

// GetDisplaySecretRequest is the control event spec.md §6/§4.8
// describes; it enters the VM's channel so it serialises against
// ongoing reconciles.
type GetDisplaySecretRequest struct {
	Name   string
	User   string
	Result chan<- GetDisplaySecretResult
}

// VMName implements Event.
func (e GetDisplaySecretRequest) VMName() string { return e.Name }

// GetDisplaySecretResult is delivered on GetDisplaySecretRequest.Result
// exactly once.
type GetDisplaySecretResult struct {
	Password string
	Err      error
}

// PrepareConsoleRequest is the control event spec.md §6 describes.
// Per spec.md §9's Open Question, this rewrite requires only
// conditions[Running]=True (not Booted) to succeed.
type PrepareConsoleRequest struct {
	Name      string
	User      string
	LoginUser string
	Result    chan<- error
}

// VMName implements Event.
func (e PrepareConsoleRequest) VMName() string { return e.Name }

// ResetVmRequest is the control event spec.md §6/§4.6 describes: bump
// the in-memory reset counter and run only the ConfigMap
// sub-reconciler.
type ResetVmRequest struct {
	Name   string
	Result chan<- error
}

// VMName implements Event.
func (e ResetVmRequest) VMName() string { return e.Name }
