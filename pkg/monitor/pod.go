// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
)

// podGVR is the core Pod resource, watched through the same generic
// dynamic-client Observer used for the CRDs (spec.md §9).
var podGVR = schema.GroupVersionResource{Version: "v1", Resource: "pods"}

// PodMonitor watches runner pods, correlates them to a VM via the
// instance label, and either emits bus.PodChangedEvent on the VM's
// channel or buffers the change until the VM becomes known (spec.md
// §4.4).
type PodMonitor struct {
	dict    *bus.ChannelDictionary
	log     *zap.SugaredLogger
	pending *pendingPodChanges

	obs *observer.Observer[*corev1.Pod]
}

// NewPodMonitor builds a PodMonitor over namespace, watching pods
// labelled as runners.
func NewPodMonitor(dyn dynamic.Interface, namespace string, dict *bus.ChannelDictionary, log *zap.SugaredLogger) *PodMonitor {
	sel := labels.Set{
		constants.LabelName:      constants.AppName,
		constants.LabelComponent: constants.ComponentRunner,
		constants.LabelManagedBy: constants.OperatorName,
	}.AsSelector().String()

	m := &PodMonitor{dict: dict, log: log, pending: newPendingPodChanges()}
	m.obs = observer.New(dyn, podGVR, namespace, sel, decodePod, log)
	return m
}

// Run watches runner pods until ctx is cancelled.
func (m *PodMonitor) Run(ctx context.Context, errCh chan<- error) {
	events := make(chan observer.Event[*corev1.Pod], 64)
	go m.obs.Run(ctx, events, errCh)

	ticker := time.NewTicker(constants.PendingPodChangeTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pending.Purge()
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handle(ev)
		}
	}
}

func (m *PodMonitor) handle(ev observer.Event[*corev1.Pod]) {
	if ev.Type == observer.Bookmark || ev.Object == nil {
		return
	}
	pod := ev.Object
	vmName := pod.Labels[constants.LabelInstance]
	if vmName == "" {
		return
	}

	ch, ok := m.dict.Get(vmName)
	if !ok || ch.VmDef() == nil {
		m.pending.Add(PendingPodChange{VMName: vmName, Type: ev.Type, Pod: pod, EnqueuedAt: time.Now()})
		return
	}
	m.deliver(ch, ev.Type, pod)
}

// deliver emits PodChangedEvent, then re-publishes VmResourceChanged
// with PodChanged=true so the Reconciler runs (spec.md §4.4).
func (m *PodMonitor) deliver(ch *bus.VmChannel, t observer.EventType, pod *corev1.Pod) {
	ch.Submit(bus.PodChangedEvent{Name: ch.Name, Type: t, Pod: pod})
	if vm := ch.VmDef(); vm != nil {
		ch.Submit(bus.VmResourceChanged{Type: t, Vm: vm, PodChanged: true})
	}
}

// DeliverPending flushes any PendingPodChange entries buffered for
// vmName once its channel is known, called by the VM Monitor's handler
// right after it stores the VM's first definition.
func (m *PodMonitor) DeliverPending(ch *bus.VmChannel) {
	changes := m.pending.Take(ch.Name)
	for _, c := range changes {
		m.deliver(ch, c.Type, c.Pod)
	}
}

