// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualMachineDeepCopyIsIndependentOfOriginal(t *testing.T) {
	enabled := true
	original := &VirtualMachine{}
	original.Name = "vm1"
	original.Spec.Pools = []string{"pool-a"}
	original.Spec.LoadBalancerService = &LoadBalancerSpec{Enabled: &enabled, Labels: map[string]string{"tier": "gold"}}
	original.Spec.Vm.Disks = []DiskSpec{{Cdrom: &CdromSpec{Image: "install.iso"}}}

	copied := original.DeepCopy()
	copied.Spec.Pools[0] = "pool-b"
	*copied.Spec.LoadBalancerService.Enabled = false
	copied.Spec.LoadBalancerService.Labels["tier"] = "silver"
	copied.Spec.Vm.Disks[0].Cdrom.Image = "other.iso"

	assert.Equal(t, "pool-a", original.Spec.Pools[0])
	assert.True(t, *original.Spec.LoadBalancerService.Enabled)
	assert.Equal(t, "gold", original.Spec.LoadBalancerService.Labels["tier"])
	assert.Equal(t, "install.iso", original.Spec.Vm.Disks[0].Cdrom.Image)
}

func TestVirtualMachineDeepCopyObjectReturnsSameData(t *testing.T) {
	original := &VirtualMachine{}
	original.Name = "vm1"

	obj := original.DeepCopyObject()
	vm, ok := obj.(*VirtualMachine)
	require.True(t, ok)
	assert.Equal(t, "vm1", vm.Name)
}

func TestVmPoolDeepCopyIsIndependentOfOriginal(t *testing.T) {
	original := &VmPool{}
	original.Name = "pool1"
	original.Spec.Permissions = []Permission{{User: "alice", May: []string{"start"}}}

	copied := original.DeepCopy()
	copied.Spec.Permissions[0].May[0] = "stop"

	assert.Equal(t, "start", original.Spec.Permissions[0].May[0])
}

func TestDeepCopyOnNilReceiverReturnsNil(t *testing.T) {
	var vm *VirtualMachine
	assert.Nil(t, vm.DeepCopy())

	var pool *VmPool
	assert.Nil(t, pool.DeepCopy())
}
