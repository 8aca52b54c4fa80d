// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package monitor

import (
	"context"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
)

func recordingDispatch(out chan<- bus.Event) bus.DispatchFunc {
	return func(ctx context.Context, ch *bus.VmChannel, ev bus.Event) {
		out <- ev
	}
}

func runnerPod(name, vmName string) *corev1.Pod {
	return &corev1.Pod{ObjectMeta: metav1.ObjectMeta{
		Name:      name,
		Namespace: "vms",
		Labels:    map[string]string{constants.LabelInstance: vmName},
	}}
}

func TestPodMonitorHandleBuffersWhenVMUnknown(t *testing.T) {
	events := make(chan bus.Event, 4)
	dict := bus.NewChannelDictionary(recordingDispatch(events))
	m := NewPodMonitor(nil, "vms", dict, zap.NewNop().Sugar())

	pod := runnerPod("vm1-runner", "vm1")
	m.handle(observer.Event[*corev1.Pod]{Type: observer.Added, Object: pod})

	select {
	case <-events:
		t.Fatal("no event should be delivered before the VM is known")
	case <-time.After(100 * time.Millisecond):
	}

	ch := dict.GetOrCreate("vm1")
	ch.SetVmDef(&vmoperatorv1.VirtualMachine{ObjectMeta: metav1.ObjectMeta{Name: "vm1"}})
	m.DeliverPending(ch)

	select {
	case ev := <-events:
		podEv, ok := ev.(bus.PodChangedEvent)
		require.True(t, ok)
		assert.Equal(t, "vm1", podEv.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for buffered pod change to be delivered")
	}
}

func TestPodMonitorHandleDeliversImmediatelyWhenVMKnown(t *testing.T) {
	events := make(chan bus.Event, 4)
	dict := bus.NewChannelDictionary(recordingDispatch(events))
	m := NewPodMonitor(nil, "vms", dict, zap.NewNop().Sugar())

	ch := dict.GetOrCreate("vm1")
	ch.SetVmDef(&vmoperatorv1.VirtualMachine{ObjectMeta: metav1.ObjectMeta{Name: "vm1"}})

	pod := runnerPod("vm1-runner", "vm1")
	m.handle(observer.Event[*corev1.Pod]{Type: observer.Modified, Object: pod})

	select {
	case ev := <-events:
		_, ok := ev.(bus.PodChangedEvent)
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for immediate delivery")
	}
}

func TestPodMonitorHandleIgnoresPodWithoutInstanceLabel(t *testing.T) {
	events := make(chan bus.Event, 4)
	dict := bus.NewChannelDictionary(recordingDispatch(events))
	m := NewPodMonitor(nil, "vms", dict, zap.NewNop().Sugar())

	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "stray", Namespace: "vms"}}
	m.handle(observer.Event[*corev1.Pod]{Type: observer.Added, Object: pod})

	select {
	case <-events:
		t.Fatal("no event should be delivered for a pod without the instance label")
	case <-time.After(100 * time.Millisecond):
	}
}
