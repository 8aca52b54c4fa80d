// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jdrupes-go/vmoperator/pkg/config"
	"github.com/jdrupes-go/vmoperator/pkg/resources"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(
		NewConfigMapReconciler(),
		NewDisplaySecretReconciler(),
		NewPVCReconciler(),
		NewStatefulSetReconciler(),
		NewPodReconciler(),
		NewLoadBalancerReconciler(),
	)
}

func TestDispatchSkipsDownstreamStagesWhenNothingChanged(t *testing.T) {
	client := fake.NewSimpleClientset()
	vm := testVM("vm1")
	rc := testContextWithChannel(client, vm)
	rc.Config = &config.OperatorConfig{}
	rc.Log = zap.NewNop().Sugar()

	require.NoError(t, newTestDispatcher().Dispatch(rc, false, false))

	_, err := client.CoreV1().ConfigMaps("vms").Get(context.Background(), resources.RunnerConfigMapName(vm), metav1.GetOptions{})
	assert.NoError(t, err, "the config map stage always runs")

	_, err = client.CoreV1().Pods("vms").Get(context.Background(), resources.RunnerPodName(vm), metav1.GetOptions{})
	assert.Error(t, err, "downstream stages are skipped when nothing changed")
}

func TestDispatchRunsFullPipelineOnSpecChange(t *testing.T) {
	client := fake.NewSimpleClientset()
	vm := testVM("vm1")
	rc := testContextWithChannel(client, vm)
	rc.Config = &config.OperatorConfig{}
	rc.Log = zap.NewNop().Sugar()

	require.NoError(t, newTestDispatcher().Dispatch(rc, true, false))

	_, err := client.CoreV1().ConfigMaps("vms").Get(context.Background(), resources.RunnerConfigMapName(vm), metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = client.CoreV1().PersistentVolumeClaims("vms").Get(context.Background(), resources.RunnerDataPVCName(vm), metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = client.CoreV1().Pods("vms").Get(context.Background(), resources.RunnerPodName(vm), metav1.GetOptions{})
	assert.NoError(t, err)
}

func TestDispatchResetOnlyRunsConfigMap(t *testing.T) {
	client := fake.NewSimpleClientset()
	vm := testVM("vm1")
	rc := testContextWithChannel(client, vm)
	rc.Config = &config.OperatorConfig{}
	rc.Log = zap.NewNop().Sugar()

	require.NoError(t, newTestDispatcher().DispatchReset(rc))

	_, err := client.CoreV1().ConfigMaps("vms").Get(context.Background(), resources.RunnerConfigMapName(vm), metav1.GetOptions{})
	assert.NoError(t, err)
	_, err = client.CoreV1().Pods("vms").Get(context.Background(), resources.RunnerPodName(vm), metav1.GetOptions{})
	assert.Error(t, err)
}
