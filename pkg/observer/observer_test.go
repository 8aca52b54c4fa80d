// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package observer

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/scheme"
	clienttesting "k8s.io/client-go/testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var podGVR = schema.GroupVersionResource{Version: "v1", Resource: "pods"}

func decodePodName(u *unstructured.Unstructured) (string, error) {
	return u.GetName(), nil
}

func TestIsEmptyPayloadDetectsIdentityOnlyObject(t *testing.T) {
	bare := &unstructured.Unstructured{Object: map[string]any{
		"metadata": map[string]any{"name": "vm1"},
	}}
	assert.True(t, isEmptyPayload(bare))

	withSpec := &unstructured.Unstructured{Object: map[string]any{
		"metadata": map[string]any{"name": "vm1"},
		"spec":     map[string]any{"vm": map[string]any{}},
	}}
	assert.False(t, isEmptyPayload(withSpec))
}

func TestToEventTypeMapsKnownTypes(t *testing.T) {
	assert.Equal(t, Added, toEventType(watch.Added))
	assert.Equal(t, Modified, toEventType(watch.Modified))
	assert.Equal(t, Deleted, toEventType(watch.Deleted))
	assert.Equal(t, ErrorEvt, toEventType(watch.Error))
}

func newFakeDynamicClient(objects ...runtime.Object) *fake.FakeDynamicClient {
	gvrToListKind := map[schema.GroupVersionResource]string{
		podGVR: "PodList",
	}
	return fake.NewSimpleDynamicClientWithCustomListKinds(scheme.Scheme, gvrToListKind, objects...)
}

func TestObserverEmitsAddedForExistingObjectOnList(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "vm1-runner", Namespace: "vms"}}
	client := newFakeDynamicClient(pod)

	o := New[string](client, podGVR, "vms", "", decodePodName, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Event[string], 8)
	errCh := make(chan error, 1)
	go o.Run(ctx, out, errCh)

	select {
	case ev := <-out:
		assert.Equal(t, Added, ev.Type)
		assert.Equal(t, "vm1-runner", ev.Object)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial ADDED event")
	}
	cancel()
}

func TestObserverReturnsPermanentErrorWhenResourceForbidden(t *testing.T) {
	client := newFakeDynamicClient()
	client.PrependReactor("list", "pods", func(action clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "pods"}, "", nil)
	})

	o := New[string](client, podGVR, "vms", "", decodePodName, zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out := make(chan Event[string], 1)
	errCh := make(chan error, 1)
	go o.Run(ctx, out, errCh)

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for permanent error")
	}
}
