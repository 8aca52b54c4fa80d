// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package resources

import (
	"testing"

	corev1 "k8s.io/api/core/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunnerPodAppliesCPUAndRAMOvercommit(t *testing.T) {
	vm := testVM("vm1")
	vm.Spec.Vm.CurrentCpus = 4
	vm.Spec.Vm.CurrentRam = "4Gi"

	pod := NewRunnerPod(vm, PodSpecInput{CPUOvercommit: 2, RAMOvercommit: 1.25})

	requests := pod.Spec.Containers[0].Resources.Requests
	assert.Equal(t, "2", requests[corev1.ResourceCPU].String())
	assert.Equal(t, int64(3435973836), requests[corev1.ResourceMemory].Value()) // 4Gi / 1.25, truncated
}

func TestNewRunnerPodTreatsZeroOvercommitAsNoOvercommit(t *testing.T) {
	vm := testVM("vm1")
	vm.Spec.Vm.CurrentCpus = 2
	vm.Spec.Vm.CurrentRam = "1Gi"

	pod := NewRunnerPod(vm, PodSpecInput{})

	requests := pod.Spec.Containers[0].Resources.Requests
	assert.Equal(t, "2", requests[corev1.ResourceCPU].String())
	assert.Equal(t, int64(1024*1024*1024), requests[corev1.ResourceMemory].Value())
}

func TestNewRunnerPodSkipsMemoryRequestWhenRamUnset(t *testing.T) {
	vm := testVM("vm1")
	vm.Spec.Vm.CurrentCpus = 1

	pod := NewRunnerPod(vm, PodSpecInput{})

	_, ok := pod.Spec.Containers[0].Resources.Requests[corev1.ResourceMemory]
	require.False(t, ok)
}
