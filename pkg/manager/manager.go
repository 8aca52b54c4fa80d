// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package manager wires the monitors and the reconciler dispatcher
// together into the control loop spec.md §2/§4 describes: watches
// publish onto per-VM channels, a single dispatch function routes every
// event (resource change or console-UI request) to the right handler,
// and the channel guarantees in-order, serialized handling per VM.
package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	apiextensionsclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/record"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/config"
	"github.com/jdrupes-go/vmoperator/pkg/metricsexporter"
	"github.com/jdrupes-go/vmoperator/pkg/monitor"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
	"github.com/jdrupes-go/vmoperator/pkg/reconcile"
)

const resetCountKey = "manager.resetCount"

// Manager is the top-level control-loop object cmd/vmoperator-ctrl
// constructs and runs.
type Manager struct {
	namespace string
	client    kubernetes.Interface
	dynamic   dynamic.Interface
	config    *config.OperatorConfig
	recorder  record.EventRecorder
	log       *zap.SugaredLogger

	dict          *bus.ChannelDictionary
	vmMonitor     *monitor.VmMonitor
	podMonitor    *monitor.PodMonitor
	poolMonitor   *monitor.PoolMonitor
	secretMonitor *monitor.DisplaySecretMonitor
	dispatcher    *reconcile.Dispatcher
	crd           *crdChecker

	poolsMu sync.RWMutex
	pools   map[string]monitor.Pool

	ready int32
}

// New assembles a Manager and its monitors, but starts nothing. apiext
// may be nil, in which case the CRD-registration check in Healthy is
// skipped (useful in tests that construct a Manager without a real API
// server).
func New(cfg *config.OperatorConfig, client kubernetes.Interface, dyn dynamic.Interface, apiext apiextensionsclient.Interface, recorder record.EventRecorder, log *zap.SugaredLogger) *Manager {
	m := &Manager{
		namespace: cfg.Namespace,
		client:    client,
		dynamic:   dyn,
		config:    cfg,
		recorder:  recorder,
		log:       log,
		pools:     make(map[string]monitor.Pool),
		crd:       newCRDChecker(apiext),
	}

	m.dict = bus.NewChannelDictionary(m.dispatch)
	m.podMonitor = monitor.NewPodMonitor(dyn, m.namespace, m.dict, log)
	m.vmMonitor = monitor.NewVmMonitor(client, dyn, m.namespace, m.dict, log)
	m.vmMonitor.SetPodMonitor(m.podMonitor)
	m.poolMonitor = monitor.NewPoolMonitor(dyn, m.namespace, log)
	m.poolMonitor.Subscribe(m.onPoolChanged)
	m.secretMonitor = monitor.NewDisplaySecretMonitor(client, dyn, m.namespace, m.dict, log)

	m.dispatcher = reconcile.NewDispatcher(
		reconcile.NewConfigMapReconciler(),
		reconcile.NewDisplaySecretReconciler(),
		reconcile.NewPVCReconciler(),
		reconcile.NewStatefulSetReconciler(),
		reconcile.NewPodReconciler(),
		reconcile.NewLoadBalancerReconciler(),
	)

	return m
}

// Run starts every monitor and blocks until ctx is cancelled or one of
// them reports a permanent failure.
func (m *Manager) Run(ctx context.Context) error {
	errCh := make(chan error, 8)

	go m.vmMonitor.Run(ctx, errCh)
	go m.podMonitor.Run(ctx, errCh)
	go m.poolMonitor.Run(ctx, errCh)
	go m.secretMonitor.Run(ctx, errCh)
	go m.sampleQueueDepths(ctx)

	atomic.StoreInt32(&m.ready, 1)
	defer atomic.StoreInt32(&m.ready, 0)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "monitor reported a permanent failure")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Healthy reports whether the manager has completed startup, is
// actively running its monitors, and its CRD is still registered with
// the API server, consulted by the /healthz handler.
func (m *Manager) Healthy() bool {
	if atomic.LoadInt32(&m.ready) != 1 {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.crd.exists(ctx)
}

// sampleQueueDepths periodically publishes each VM channel's current
// queue length to the channel_queue_depth gauge.
func (m *Manager) sampleQueueDepths(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range m.dict.Names() {
				if ch, ok := m.dict.Get(name); ok {
					metricsexporter.ChannelQueueDepth.WithLabelValues(name).Set(float64(ch.QueueLen()))
				}
			}
		}
	}
}

// onPoolChanged keeps the manager's pool snapshot current for the
// GetPools query handler (spec.md §4.5, §6).
func (m *Manager) onPoolChanged(ev monitor.VmPoolChanged) {
	m.poolsMu.Lock()
	defer m.poolsMu.Unlock()
	if !ev.Pool.Defined && len(ev.Pool.Members) == 0 {
		delete(m.pools, ev.Name)
		return
	}
	m.pools[ev.Name] = ev.Pool
}

// dispatch is the central bus.DispatchFunc: every event popped off a
// VmChannel, whether a resource-change notification or a console-UI
// control request, is routed here (spec.md §4.2, §4.6).
func (m *Manager) dispatch(ctx context.Context, ch *bus.VmChannel, ev bus.Event) {
	switch e := ev.(type) {
	case bus.VmResourceChanged:
		m.handleResourceChanged(ctx, ch, e)
	case bus.PodChangedEvent:
		// Informational only; the Pod Monitor republishes a
		// VmResourceChanged{PodChanged:true} alongside this one, which is
		// what drives reconciliation (spec.md §4.4).
	case bus.GetDisplaySecretRequest:
		m.handleGetDisplaySecret(ctx, ch, e)
	case bus.PrepareConsoleRequest:
		m.handlePrepareConsole(ctx, ch, e)
	case bus.ResetVmRequest:
		m.handleResetVm(ctx, ch, e)
	default:
		m.log.Warnw("dispatch received an event of unrecognized type", "vm", ev.VMName())
	}
}

func (m *Manager) handleResourceChanged(ctx context.Context, ch *bus.VmChannel, e bus.VmResourceChanged) {
	m.poolMonitor.OnVmResourceChanged(e)

	if e.Type == observer.Deleted {
		m.dict.Remove(e.Vm.Name)
		go ch.Stop() // Stop() blocks on run()'s own exit; never call it from inside run().
		return
	}

	ch.NotifyStatus(e.Vm.Status.DisplayPasswordSerial)

	rc := m.contextFor(ctx, ch, e.Vm)
	if err := m.dispatcher.Dispatch(rc, e.SpecChanged, e.PodChanged); err != nil {
		m.log.Errorw("reconcile dispatch failed", "vm", e.Vm.Name, "requestId", rc.RequestID, "error", err)
		if m.recorder != nil {
			m.recorder.Eventf(e.Vm, "Warning", "ReconcileFailed", "%v", err)
		}
	}
}

func (m *Manager) handleGetDisplaySecret(ctx context.Context, ch *bus.VmChannel, e bus.GetDisplaySecretRequest) {
	vm := ch.VmDef()
	if vm == nil {
		m.replyDisplaySecret(e, "", fmt.Errorf("vm %s is unknown", e.Name))
		return
	}
	rc := m.contextFor(ctx, ch, vm)
	password, err := m.dispatcher.DisplaySecret.Rotate(rc, e.User)
	m.replyDisplaySecret(e, password, err)
}

func (m *Manager) replyDisplaySecret(e bus.GetDisplaySecretRequest, password string, err error) {
	select {
	case e.Result <- bus.GetDisplaySecretResult{Password: password, Err: err}:
	default:
	}
}

// handlePrepareConsole requires only conditions[Running]=True, not
// Booted (spec.md §9 Open Question, decided in SPEC_FULL.md).
func (m *Manager) handlePrepareConsole(ctx context.Context, ch *bus.VmChannel, e bus.PrepareConsoleRequest) {
	vm := ch.VmDef()
	if vm == nil {
		m.replyErr(e.Result, fmt.Errorf("vm %s is unknown", e.Name))
		return
	}
	if !vm.Status.IsConditionTrue(vmoperatorv1.ConditionRunning) {
		m.replyErr(e.Result, fmt.Errorf("vm %s is not running", e.Name))
		return
	}
	rc := m.contextFor(ctx, ch, vm)
	_, err := m.dispatcher.DisplaySecret.Rotate(rc, e.User)
	m.replyErr(e.Result, err)
}

func (m *Manager) handleResetVm(ctx context.Context, ch *bus.VmChannel, e bus.ResetVmRequest) {
	vm := ch.VmDef()
	if vm == nil {
		m.replyErr(e.Result, fmt.Errorf("vm %s is unknown", e.Name))
		return
	}
	count, _ := ch.Associated(resetCountKey)
	n, _ := count.(int)
	n++
	ch.SetAssociated(resetCountKey, n)

	rc := m.contextFor(ctx, ch, vm)
	rc.ResetCount = n
	err := m.dispatcher.DispatchReset(rc)
	m.replyErr(e.Result, err)
}

func (m *Manager) replyErr(result chan<- error, err error) {
	select {
	case result <- err:
	default:
	}
}

// contextFor builds the per-reconcile Context, reading the VM's reset
// count off the channel's scratch pad and its assigned pool from the
// manager's own pool snapshot.
func (m *Manager) contextFor(ctx context.Context, ch *bus.VmChannel, vm *vmoperatorv1.VirtualMachine) *reconcile.Context {
	count, _ := ch.Associated(resetCountKey)
	n, _ := count.(int)

	return &reconcile.Context{
		Ctx:          ctx,
		Vm:           vm,
		Channel:      ch,
		Client:       m.client,
		Dynamic:      m.dynamic,
		Config:       m.config,
		Recorder:     m.recorder,
		Log:          m.log,
		AssignedPool: m.assignedPoolFor(vm.Name),
		ResetCount:   n,
		RequestID:    uuid.New().String(),
	}
}

func (m *Manager) assignedPoolFor(vmName string) string {
	m.poolsMu.RLock()
	defer m.poolsMu.RUnlock()
	for name, p := range m.pools {
		if p.Members[vmName] {
			return name
		}
	}
	return ""
}
