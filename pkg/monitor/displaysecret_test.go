// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package monitor

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
)

func displaySecretFor(vmName string) *corev1.Secret {
	return &corev1.Secret{ObjectMeta: metav1.ObjectMeta{
		Name:            vmName + "-display",
		Namespace:       "vms",
		Labels:          map[string]string{constants.LabelInstance: vmName},
		ResourceVersion: "42",
	}}
}

func TestDisplaySecretMonitorBumpsAnnotationForKnownVM(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "vm1", Namespace: "vms"}}
	client := fake.NewSimpleClientset(pod)
	dict := bus.NewChannelDictionary(noopDispatch)
	dict.GetOrCreate("vm1").SetVmDef(&vmoperatorv1.VirtualMachine{ObjectMeta: metav1.ObjectMeta{Name: "vm1"}})

	m := NewDisplaySecretMonitor(client, nil, "vms", dict, zap.NewNop().Sugar())
	m.handle(context.Background(), observer.Event[*corev1.Secret]{Type: observer.Modified, Object: displaySecretFor("vm1")})

	updated, err := client.CoreV1().Pods("vms").Get(context.Background(), "vm1", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "42", updated.Annotations[constants.AnnotationDisplaySecretVersion])
}

func TestDisplaySecretMonitorSkipsUnknownVM(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "vm2", Namespace: "vms"}}
	client := fake.NewSimpleClientset(pod)
	dict := bus.NewChannelDictionary(noopDispatch)

	m := NewDisplaySecretMonitor(client, nil, "vms", dict, zap.NewNop().Sugar())
	m.handle(context.Background(), observer.Event[*corev1.Secret]{Type: observer.Modified, Object: displaySecretFor("vm2")})

	updated, err := client.CoreV1().Pods("vms").Get(context.Background(), "vm2", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Empty(t, updated.Annotations[constants.AnnotationDisplaySecretVersion])
}

func TestDisplaySecretMonitorIgnoresDeletedEvent(t *testing.T) {
	dict := bus.NewChannelDictionary(noopDispatch)
	dict.GetOrCreate("vm1").SetVmDef(&vmoperatorv1.VirtualMachine{ObjectMeta: metav1.ObjectMeta{Name: "vm1"}})
	client := fake.NewSimpleClientset()

	m := NewDisplaySecretMonitor(client, nil, "vms", dict, zap.NewNop().Sugar())
	m.handle(context.Background(), observer.Event[*corev1.Secret]{Type: observer.Deleted, Object: displaySecretFor("vm1")})
}
