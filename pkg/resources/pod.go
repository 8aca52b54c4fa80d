// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package resources

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// RunnerPodName is the name of the runner pod for vm: the bare VM name
// (spec.md §4.7, S1). Pods, not StatefulSets, own the runner's
// lifecycle in this rewrite (spec.md §9 REDESIGN FLAG); the eviction
// sub-reconciler cleans up any StatefulSet a VM still carries from
// before.
func RunnerPodName(vm *vmoperatorv1.VirtualMachine) string {
	return vm.Name
}

// PodSpecInput collects the volumes a runner pod needs, assembled by the
// Pod sub-reconciler from the VM spec and the PVC names the PVC
// sub-reconciler cached earlier in the same dispatch.
type PodSpecInput struct {
	Image           string
	RunnerDataClaim string
	DiskClaims      []DiskVolume
	CdromImages     []string
	ConfigMapName   string
	DisplaySecret   string
	CloudInitMeta   string

	// CPUOvercommit and RAMOvercommit are the operator-wide ratios
	// (spec.md §6 "/Reconciler/cpuOvercommit"/"ramOvercommit") the
	// requested pod resources are divided by, so a host can run more
	// guest vCPUs/RAM than it physically has. A zero ratio is treated
	// as 1 (no overcommit).
	CPUOvercommit float64
	RAMOvercommit float64
}

// DiskVolume pairs a disk's PVC name with the device name the runner
// should expose it under.
type DiskVolume struct {
	ClaimName string
	Device    string
}

// NewRunnerPod builds the runner pod document. Reconciling it is a
// server-side apply with force=true (spec.md §4.4 "Pod"); the caller is
// responsible for skipping this entirely while a legacy StatefulSet for
// the same VM still exists.
func NewRunnerPod(vm *vmoperatorv1.VirtualMachine, in PodSpecInput) *corev1.Pod {
	volumes := []corev1.Volume{
		{
			Name: "runner-data",
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: in.RunnerDataClaim},
			},
		},
		{
			Name: "runner-config",
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: in.ConfigMapName},
				},
			},
		},
	}
	mounts := []corev1.VolumeMount{
		{Name: "runner-data", MountPath: "/var/lib/vmrunner/data"},
		{Name: "runner-config", MountPath: "/etc/vmrunner", ReadOnly: true},
	}
	for _, d := range in.DiskClaims {
		volumes = append(volumes, corev1.Volume{
			Name: d.Device,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: d.ClaimName},
			},
		})
		mounts = append(mounts, corev1.VolumeMount{Name: d.Device, MountPath: "/dev/vm-disks/" + d.Device})
	}
	if in.DisplaySecret != "" {
		volumes = append(volumes, corev1.Volume{
			Name: "display-secret",
			VolumeSource: corev1.VolumeSource{
				Secret: &corev1.SecretVolumeSource{SecretName: in.DisplaySecret},
			},
		})
		mounts = append(mounts, corev1.VolumeMount{Name: "display-secret", MountPath: "/etc/vmrunner/display", ReadOnly: true})
	}

	requests := corev1.ResourceList{
		corev1.ResourceCPU: overcommitCPU(vm.Spec.Vm.CurrentCpus, in.CPUOvercommit),
	}
	if vm.Spec.Vm.CurrentRam != "" {
		if q, ok := overcommitRAM(vm.Spec.Vm.CurrentRam, in.RAMOvercommit); ok {
			requests[corev1.ResourceMemory] = q
		}
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:            RunnerPodName(vm),
			Namespace:       vm.Namespace,
			Labels:          MetaLabels(vm, constants.ComponentRunner),
			OwnerReferences: OwnerReferences(vm),
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:         constants.AppName,
					Image:        in.Image,
					VolumeMounts: mounts,
					Resources: corev1.ResourceRequirements{
						Requests: requests,
					},
				},
			},
			Volumes: volumes,
		},
	}
}

// overcommitCPU divides the VM's declared vCPU count by ratio to get
// the pod's CPU request, expressed in milliCPU so fractional ratios
// don't truncate to zero.
func overcommitCPU(cpus int32, ratio float64) resource.Quantity {
	if ratio <= 0 {
		ratio = 1
	}
	milli := int64(float64(cpus) * 1000 / ratio)
	return *resource.NewMilliQuantity(milli, resource.DecimalSI)
}

// overcommitRAM divides the VM's declared RAM quantity by ratio to get
// the pod's memory request.
func overcommitRAM(ram string, ratio float64) (resource.Quantity, bool) {
	q, err := resource.ParseQuantity(ram)
	if err != nil {
		return resource.Quantity{}, false
	}
	if ratio <= 0 {
		ratio = 1
	}
	scaled := int64(float64(q.Value()) / ratio)
	return *resource.NewQuantity(scaled, resource.BinarySI), true
}
