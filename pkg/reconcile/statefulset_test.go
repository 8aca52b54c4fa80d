// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
)

func testVM(name string) *vmoperatorv1.VirtualMachine {
	return &vmoperatorv1.VirtualMachine{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "vms"},
	}
}

func testContext(client *fake.Clientset, vm *vmoperatorv1.VirtualMachine) *Context {
	return &Context{
		Ctx:    context.Background(),
		Vm:     vm,
		Client: client,
	}
}

func TestStatefulSetReconcileNoLegacyResource(t *testing.T) {
	client := fake.NewSimpleClientset()
	vm := testVM("vm1")
	rc := testContext(client, vm)

	require.NoError(t, NewStatefulSetReconciler().Reconcile(rc))
	assert.False(t, rc.UsingSts)
}

func TestStatefulSetReconcileDeletesScaledDownStatefulSet(t *testing.T) {
	zero := int32(0)
	sts := &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: "vm1", Namespace: "vms"},
		Spec:       appsv1.StatefulSetSpec{Replicas: &zero},
	}
	client := fake.NewSimpleClientset(sts)
	vm := testVM("vm1")
	rc := testContext(client, vm)

	require.NoError(t, NewStatefulSetReconciler().Reconcile(rc))
	assert.False(t, rc.UsingSts)

	_, err := client.AppsV1().StatefulSets("vms").Get(context.Background(), "vm1", metav1.GetOptions{})
	assert.True(t, k8serrors.IsNotFound(err))
}

func TestStatefulSetReconcileScalesDownOnStoppedState(t *testing.T) {
	one := int32(1)
	sts := &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: "vm1", Namespace: "vms"},
		Spec:       appsv1.StatefulSetSpec{Replicas: &one},
	}
	client := fake.NewSimpleClientset(sts)
	vm := testVM("vm1")
	vm.Spec.Vm.State = vmoperatorv1.VmStateStopped
	rc := testContext(client, vm)

	require.NoError(t, NewStatefulSetReconciler().Reconcile(rc))
	assert.True(t, rc.UsingSts)

	updated, err := client.AppsV1().StatefulSets("vms").Get(context.Background(), "vm1", metav1.GetOptions{})
	require.NoError(t, err)
	require.NotNil(t, updated.Spec.Replicas)
	assert.Equal(t, int32(0), *updated.Spec.Replicas)
}

func TestStatefulSetReconcileLeavesRunningStatefulSetAlone(t *testing.T) {
	one := int32(1)
	sts := &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: "vm1", Namespace: "vms"},
		Spec:       appsv1.StatefulSetSpec{Replicas: &one},
	}
	client := fake.NewSimpleClientset(sts)
	vm := testVM("vm1")
	vm.Spec.Vm.State = vmoperatorv1.VmStateRunning
	rc := testContext(client, vm)

	require.NoError(t, NewStatefulSetReconciler().Reconcile(rc))
	assert.True(t, rc.UsingSts)

	updated, err := client.AppsV1().StatefulSets("vms").Get(context.Background(), "vm1", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), *updated.Spec.Replicas)
}
