// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package resources

import (
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPVCNaming(t *testing.T) {
	vm := testVM("vm1")

	assert.Equal(t, "vm1-runner-data", RunnerDataPVCName(vm))
	assert.Equal(t, "runner-data-vm1-0", LegacyRunnerDataPVCName(vm))
	assert.Equal(t, "system-disk", GeneratedDiskName("system"))
	assert.Equal(t, "disk-2-disk", GeneratedDiskName("disk-2"))
	assert.Equal(t, "vm1-system-disk", DiskPVCName(vm, GeneratedDiskName("system")))
	assert.Equal(t, "boot-vm1-0", LegacyDiskName(vm, "boot"))
}

func TestNewRunnerDataPVC(t *testing.T) {
	vm := testVM("vm1")
	pvc := NewRunnerDataPVC(vm, "vm1-runner-data", "fast")

	assert.Equal(t, "vm1-runner-data", pvc.Name)
	assert.Equal(t, "vms", pvc.Namespace)
	require.NotNil(t, pvc.Spec.StorageClassName)
	assert.Equal(t, "fast", *pvc.Spec.StorageClassName)
	assert.Len(t, pvc.OwnerReferences, 1)
}

func TestNewRunnerDataPVCNoStorageClass(t *testing.T) {
	vm := testVM("vm1")
	pvc := NewRunnerDataPVC(vm, "vm1-runner-data", "")
	assert.Nil(t, pvc.Spec.StorageClassName)
}

func TestNewDiskPVC(t *testing.T) {
	vm := testVM("vm1")
	template := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "ignored", ResourceVersion: "999"},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: resource.MustParse("5Gi")},
			},
		},
	}

	pvc := NewDiskPVC(vm, "vm1-disk-0", template)

	assert.Equal(t, "vm1-disk-0", pvc.Name)
	assert.Equal(t, "vms", pvc.Namespace)
	assert.Empty(t, pvc.ResourceVersion)
	assert.Equal(t, "5Gi", pvc.Spec.Resources.Requests.Storage().String())
	// original template must be untouched
	assert.Equal(t, "ignored", template.Name)
}
