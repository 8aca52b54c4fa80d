// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package resources

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
)

// RunnerDataPVCName is the current-scheme name for the runner's scratch
// data volume.
func RunnerDataPVCName(vm *vmoperatorv1.VirtualMachine) string {
	return vm.Name + "-" + constants.RunnerDataPVCSuffix
}

// LegacyRunnerDataPVCName is the StatefulSet-era name
// (runner-data-<vm>-0), kept so the PVC sub-reconciler can adopt
// volumes created before the rewrite to bare pods instead of abandoning
// them (spec.md §4.4 "PVC" legacy-name fallback).
func LegacyRunnerDataPVCName(vm *vmoperatorv1.VirtualMachine) string {
	return fmt.Sprintf(constants.LegacyRunnerDataPVCSuffix, vm.Name)
}

// GeneratedDiskName derives the generatedDiskName for a disk from its
// resolved diskName (the VolumeClaimTemplate's own name, or a
// positional "disk-<index>" fallback for unnamed templates): the
// template's name with a "-disk" suffix (spec.md §4.9 step 3).
func GeneratedDiskName(diskName string) string {
	return diskName + "-disk"
}

// DiskPVCName is the current-scheme PVC name for a disk: the VM name
// plus its generatedDiskName.
func DiskPVCName(vm *vmoperatorv1.VirtualMachine, generatedDiskName string) string {
	return vm.Name + "-" + generatedDiskName
}

// LegacyDiskName is the StatefulSet-era name for a disk whose
// VolumeClaimTemplate carried an explicit name (<diskName>-<vm>-0).
func LegacyDiskName(vm *vmoperatorv1.VirtualMachine, diskName string) string {
	return fmt.Sprintf("%s-%s-0", diskName, vm.Name)
}

// NewRunnerDataPVC builds the runner-data PVC document.
func NewRunnerDataPVC(vm *vmoperatorv1.VirtualMachine, name, storageClassName string) *corev1.PersistentVolumeClaim {
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:            name,
			Namespace:       vm.Namespace,
			Labels:          MetaLabels(vm, constants.ComponentRunner),
			OwnerReferences: OwnerReferences(vm),
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: resource.MustParse("1Gi"),
				},
			},
			StorageClassName: storageClassNameOrNil(storageClassName),
		},
	}
}

// NewDiskPVC builds one disk's PVC document from its VolumeClaimTemplate,
// overriding only the name, namespace, labels and owner reference so the
// user's requested size/storage class/access modes pass through unchanged.
func NewDiskPVC(vm *vmoperatorv1.VirtualMachine, name string, template *corev1.PersistentVolumeClaim) *corev1.PersistentVolumeClaim {
	pvc := template.DeepCopy()
	pvc.Name = name
	pvc.Namespace = vm.Namespace
	pvc.Labels = MetaLabels(vm, constants.ComponentDisk)
	pvc.OwnerReferences = OwnerReferences(vm)
	pvc.ResourceVersion = ""
	return pvc
}

func storageClassNameOrNil(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
