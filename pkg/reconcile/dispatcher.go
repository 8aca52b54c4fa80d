// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package reconcile

import (
	"time"

	"github.com/jdrupes-go/vmoperator/pkg/metricsexporter"
)

// Dispatcher wires the six sub-reconcilers together in the order
// spec.md §4.6 specifies: the config map must exist before the pod
// starts; PVCs before the pod mounts them; any legacy StatefulSet must
// be evicted before the pod takes over; the pod before the load balancer
// points at anything; the display secret before the runner can publish
// credentials.
type Dispatcher struct {
	ConfigMap      *ConfigMapReconciler
	DisplaySecret  *DisplaySecretReconciler
	PVC            *PVCReconciler
	StatefulSet    *StatefulSetReconciler
	Pod            *PodReconciler
	LoadBalancer   *LoadBalancerReconciler
}

// NewDispatcher assembles a Dispatcher from its six sub-reconcilers.
func NewDispatcher(configMap *ConfigMapReconciler, displaySecret *DisplaySecretReconciler, pvc *PVCReconciler, statefulSet *StatefulSetReconciler, pod *PodReconciler, loadBalancer *LoadBalancerReconciler) *Dispatcher {
	return &Dispatcher{
		ConfigMap:     configMap,
		DisplaySecret: displaySecret,
		PVC:           pvc,
		StatefulSet:   statefulSet,
		Pod:           pod,
		LoadBalancer:  loadBalancer,
	}
}

// Dispatch runs the full reconcile pipeline for one VmResourceChanged
// notification (spec.md §4.6). The ConfigMap sub-reconciler always
// runs; the rest only run when the spec or the pod changed.
func (d *Dispatcher) Dispatch(rc *Context, specChanged, podChanged bool) error {
	start := time.Now()
	defer func() { metricsexporter.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.ConfigMap.Reconcile(rc); err != nil {
		rc.Log.Errorw("config map reconcile failed", "vm", rc.Vm.Name, "requestId", rc.RequestID, "error", err)
		metricsexporter.ReconcileErrors.WithLabelValues("configmap").Inc()
		return err
	}

	if !specChanged && !podChanged {
		return nil
	}

	if err := d.DisplaySecret.Reconcile(rc, specChanged); err != nil {
		rc.Log.Errorw("display secret reconcile failed", "vm", rc.Vm.Name, "requestId", rc.RequestID, "error", err)
		metricsexporter.ReconcileErrors.WithLabelValues("displaysecret").Inc()
		return err
	}
	if err := d.PVC.Reconcile(rc, specChanged); err != nil {
		rc.Log.Errorw("pvc reconcile failed", "vm", rc.Vm.Name, "requestId", rc.RequestID, "error", err)
		metricsexporter.ReconcileErrors.WithLabelValues("pvc").Inc()
		return err
	}
	if err := d.StatefulSet.Reconcile(rc); err != nil {
		rc.Log.Errorw("statefulset eviction reconcile failed", "vm", rc.Vm.Name, "requestId", rc.RequestID, "error", err)
		metricsexporter.ReconcileErrors.WithLabelValues("statefulset").Inc()
		return err
	}
	if err := d.Pod.Reconcile(rc); err != nil {
		rc.Log.Errorw("pod reconcile failed", "vm", rc.Vm.Name, "requestId", rc.RequestID, "error", err)
		metricsexporter.ReconcileErrors.WithLabelValues("pod").Inc()
		return err
	}
	if err := d.LoadBalancer.Reconcile(rc); err != nil {
		rc.Log.Errorw("load balancer reconcile failed", "vm", rc.Vm.Name, "requestId", rc.RequestID, "error", err)
		metricsexporter.ReconcileErrors.WithLabelValues("loadbalancer").Inc()
		return err
	}
	return nil
}

// DispatchReset runs only the ConfigMap sub-reconciler, for the ResetVm
// control event (spec.md §4.6 "ResetVm handling").
func (d *Dispatcher) DispatchReset(rc *Context) error {
	return d.ConfigMap.Reconcile(rc)
}
