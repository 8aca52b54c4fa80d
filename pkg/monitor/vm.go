// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
	"github.com/jdrupes-go/vmoperator/pkg/resources"
)

// VmMonitor drives a Resource Observer over VirtualMachine CRs,
// decorates each observed object with runtime-derived fields, and
// republishes it as bus.VmResourceChanged on the VM's channel
// (spec.md §4.3).
type VmMonitor struct {
	client    kubernetes.Interface
	dynamic   dynamic.Interface
	namespace string
	dict      *bus.ChannelDictionary
	log       *zap.SugaredLogger

	obs *observer.Observer[*vmoperatorv1.VirtualMachine]

	// podMonitor, when set, is asked to flush any pod changes it had
	// buffered for a VM the moment that VM's definition is first stored
	// (spec.md §4.4 "Boundary behaviours").
	podMonitor *PodMonitor
}

// NewVmMonitor builds a VmMonitor over the given namespace.
func NewVmMonitor(client kubernetes.Interface, dyn dynamic.Interface, namespace string, dict *bus.ChannelDictionary, log *zap.SugaredLogger) *VmMonitor {
	m := &VmMonitor{client: client, dynamic: dyn, namespace: namespace, dict: dict, log: log}
	m.obs = observer.New(dyn, vmoperatorv1.GVRVirtualMachine, namespace, "", decodeVirtualMachine, log)
	return m
}

// SetPodMonitor wires the PodMonitor whose buffered changes should be
// flushed whenever this monitor stores a VM's first definition.
func (m *VmMonitor) SetPodMonitor(pm *PodMonitor) {
	m.podMonitor = pm
}

// Run performs the startup purge, then watches VM CRs until ctx is
// cancelled, publishing VmResourceChanged for every event.
func (m *VmMonitor) Run(ctx context.Context, errCh chan<- error) {
	if err := m.purge(ctx); err != nil {
		m.log.Warnw("startup purge failed, continuing without it", "error", err)
	}

	events := make(chan observer.Event[*vmoperatorv1.VirtualMachine], 64)
	go m.obs.Run(ctx, events, errCh)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handle(ctx, ev)
		}
	}
}

func (m *VmMonitor) handle(ctx context.Context, ev observer.Event[*vmoperatorv1.VirtualMachine]) {
	if ev.Type == observer.Bookmark || ev.Object == nil {
		return
	}
	vm := ev.Object
	ch := m.dict.GetOrCreate(vm.Name)
	m.decorate(ctx, ch, vm)

	wasUnknown := ch.VmDef() == nil
	specChanged := ch.SetVmDef(vm)
	ch.Submit(bus.VmResourceChanged{
		Type:        ev.Type,
		Vm:          vm,
		SpecChanged: specChanged,
	})

	if wasUnknown && m.podMonitor != nil {
		m.podMonitor.DeliverPending(ch)
	}
}

// decorate reads the runner pod, when the VM reports itself Running, to
// fill in node placement on the channel (spec.md §3 "Derived extras").
// If the VM is not Running, node info is cleared per the invariant.
func (m *VmMonitor) decorate(ctx context.Context, ch *bus.VmChannel, vm *vmoperatorv1.VirtualMachine) {
	if !vm.Status.IsConditionTrue(vmoperatorv1.ConditionRunning) {
		ch.SetNodeInfo("", nil)
		return
	}
	pod, err := m.client.CoreV1().Pods(vm.Namespace).Get(ctx, resources.RunnerPodName(vm), metav1.GetOptions{})
	if err != nil || pod.Spec.NodeName == "" {
		ch.SetNodeInfo("", nil)
		return
	}
	node, err := m.client.CoreV1().Nodes().Get(ctx, pod.Spec.NodeName, metav1.GetOptions{})
	if err != nil {
		ch.SetNodeInfo(pod.Spec.NodeName, nil)
		return
	}
	addresses := make([]string, 0, len(node.Status.Addresses))
	for _, a := range node.Status.Addresses {
		addresses = append(addresses, a.Address)
	}
	ch.SetNodeInfo(node.Name, addresses)
}

// purge heals state left behind while the manager was offline during a
// CR deletion: any managed child resource whose instance label does not
// correspond to an existing VM is deleted (spec.md §4.3, S5).
func (m *VmMonitor) purge(ctx context.Context) error {
	vms, err := m.dynamic.Resource(vmoperatorv1.GVRVirtualMachine).Namespace(m.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("listing VirtualMachines for purge: %w", err)
	}
	known := make(map[string]bool, len(vms.Items))
	for _, item := range vms.Items {
		known[item.GetName()] = true
	}

	sel := labels.Set{constants.LabelManagedBy: constants.OperatorName}.AsSelector().String()
	listOpts := metav1.ListOptions{LabelSelector: sel}

	cms, err := m.client.CoreV1().ConfigMaps(m.namespace).List(ctx, listOpts)
	if err == nil {
		for _, o := range cms.Items {
			if inst := o.Labels[constants.LabelInstance]; inst != "" && !known[inst] {
				_ = m.client.CoreV1().ConfigMaps(m.namespace).Delete(ctx, o.Name, metav1.DeleteOptions{})
			}
		}
	}
	secrets, err := m.client.CoreV1().Secrets(m.namespace).List(ctx, listOpts)
	if err == nil {
		for _, o := range secrets.Items {
			if inst := o.Labels[constants.LabelInstance]; inst != "" && !known[inst] {
				_ = m.client.CoreV1().Secrets(m.namespace).Delete(ctx, o.Name, metav1.DeleteOptions{})
			}
		}
	}
	pvcs, err := m.client.CoreV1().PersistentVolumeClaims(m.namespace).List(ctx, listOpts)
	if err == nil {
		for _, o := range pvcs.Items {
			if inst := o.Labels[constants.LabelInstance]; inst != "" && !known[inst] {
				_ = m.client.CoreV1().PersistentVolumeClaims(m.namespace).Delete(ctx, o.Name, metav1.DeleteOptions{})
			}
		}
	}
	pods, err := m.client.CoreV1().Pods(m.namespace).List(ctx, listOpts)
	if err == nil {
		for _, o := range pods.Items {
			if inst := o.Labels[constants.LabelInstance]; inst != "" && !known[inst] {
				_ = m.client.CoreV1().Pods(m.namespace).Delete(ctx, o.Name, metav1.DeleteOptions{})
			}
		}
	}
	svcs, err := m.client.CoreV1().Services(m.namespace).List(ctx, listOpts)
	if err == nil {
		for _, o := range svcs.Items {
			if inst := o.Labels[constants.LabelInstance]; inst != "" && !known[inst] {
				_ = m.client.CoreV1().Services(m.namespace).Delete(ctx, o.Name, metav1.DeleteOptions{})
			}
		}
	}
	statefulSets, err := m.client.AppsV1().StatefulSets(m.namespace).List(ctx, listOpts)
	if err == nil {
		for _, o := range statefulSets.Items {
			if inst := o.Labels[constants.LabelInstance]; inst != "" && !known[inst] {
				_ = m.client.AppsV1().StatefulSets(m.namespace).Delete(ctx, o.Name, metav1.DeleteOptions{})
			}
		}
	}
	return nil
}
