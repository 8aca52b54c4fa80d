// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package monitor

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"k8s.io/client-go/dynamic"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
	"github.com/jdrupes-go/vmoperator/pkg/bus"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
)

// Pool is the in-memory mirror of a VmPool CR plus its live membership,
// matching the data model in spec.md §3.
type Pool struct {
	Name              string
	Retention         string
	Permissions       []vmoperatorv1.Permission
	LoginOnAssignment bool
	Members           map[string]bool
	Defined           bool
}

// VmPoolChanged is published on the pool pipeline whenever a pool's
// membership or definition changes (spec.md §4.5).
type VmPoolChanged struct {
	Name string
	Pool Pool
}

// copyPool returns a deep-enough copy of p safe to hand to code running
// outside the pool pipeline's single-threaded mutation path.
func copyPool(p *Pool) Pool {
	members := make(map[string]bool, len(p.Members))
	for k, v := range p.Members {
		members[k] = v
	}
	return Pool{
		Name:              p.Name,
		Retention:         p.Retention,
		Permissions:       append([]vmoperatorv1.Permission{}, p.Permissions...),
		LoginOnAssignment: p.LoginOnAssignment,
		Members:           members,
		Defined:           p.Defined,
	}
}

// PoolMonitor watches VmPool CRs and mirrors VM-pool membership derived
// from VmResourceChanged events, serialising every observer notification
// through a dedicated single-threaded pipeline (spec.md §4.5).
type PoolMonitor struct {
	log      *zap.SugaredLogger
	pipeline *bus.Pipeline

	mu    sync.RWMutex
	pools map[string]*Pool

	obs *observer.Observer[*vmoperatorv1.VmPool]

	subscribers []func(VmPoolChanged)
}

// NewPoolMonitor builds a PoolMonitor over namespace.
func NewPoolMonitor(dyn dynamic.Interface, namespace string, log *zap.SugaredLogger) *PoolMonitor {
	m := &PoolMonitor{
		log:      log,
		pipeline: bus.NewPipeline(256),
		pools:    make(map[string]*Pool),
	}
	m.obs = observer.New(dyn, vmoperatorv1.GVRVmPool, namespace, "", decodeVmPool, log)
	return m
}

// Subscribe registers fn to be called, on the pool pipeline, for every
// VmPoolChanged notification.
func (m *PoolMonitor) Subscribe(fn func(VmPoolChanged)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Run watches VmPool CRs until ctx is cancelled.
func (m *PoolMonitor) Run(ctx context.Context, errCh chan<- error) {
	events := make(chan observer.Event[*vmoperatorv1.VmPool], 64)
	go m.obs.Run(ctx, events, errCh)

	for {
		select {
		case <-ctx.Done():
			m.pipeline.Stop()
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handlePoolEvent(ev)
		}
	}
}

func (m *PoolMonitor) handlePoolEvent(ev observer.Event[*vmoperatorv1.VmPool]) {
	if ev.Type == observer.Bookmark || ev.Object == nil {
		return
	}
	pool := ev.Object
	m.pipeline.Submit(func() {
		m.mu.Lock()
		p, ok := m.pools[pool.Name]
		if !ok {
			p = &Pool{Name: pool.Name, Members: make(map[string]bool)}
			m.pools[pool.Name] = p
		}
		switch ev.Type {
		case observer.Added, observer.Modified:
			p.Retention = pool.Spec.Retention
			p.Permissions = pool.Spec.Permissions
			p.LoginOnAssignment = pool.Spec.LoginOnAssignment
			p.Defined = true
		case observer.Deleted:
			p.Defined = false
			if len(p.Members) == 0 {
				delete(m.pools, pool.Name)
			}
		}
		snapshot := copyPool(p)
		m.mu.Unlock()
		m.notify(VmPoolChanged{Name: pool.Name, Pool: snapshot})
	})
}

// OnVmResourceChanged updates pool membership from a VM's ADDED/DELETED
// transitions (spec.md §4.5: "Subscribes to VmResourceChanged").
// Callers wire this into the manager's central dispatch.
func (m *PoolMonitor) OnVmResourceChanged(ev bus.VmResourceChanged) {
	if ev.Type != observer.Added && ev.Type != observer.Deleted {
		return
	}
	vm := ev.Vm
	m.pipeline.Submit(func() {
		if ev.Type == observer.Added {
			for _, poolName := range vm.Spec.Pools {
				m.addMember(poolName, vm.Name)
			}
			return
		}
		m.mu.Lock()
		var changed []VmPoolChanged
		for name, p := range m.pools {
			if !p.Members[vm.Name] {
				continue
			}
			delete(p.Members, vm.Name)
			snapshot := copyPool(p)
			if !p.Defined && len(p.Members) == 0 {
				delete(m.pools, name)
			}
			changed = append(changed, VmPoolChanged{Name: name, Pool: snapshot})
		}
		m.mu.Unlock()
		for _, ev := range changed {
			m.notify(ev)
		}
	})
}

func (m *PoolMonitor) addMember(poolName, vmName string) {
	m.mu.Lock()
	p, ok := m.pools[poolName]
	if !ok {
		p = &Pool{Name: poolName, Members: make(map[string]bool)}
		m.pools[poolName] = p
	}
	p.Members[vmName] = true
	snapshot := copyPool(p)
	m.mu.Unlock()
	m.notify(VmPoolChanged{Name: poolName, Pool: snapshot})
}

func (m *PoolMonitor) notify(ev VmPoolChanged) {
	m.mu.RLock()
	subs := append([]func(VmPoolChanged){}, m.subscribers...)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Snapshot returns a copy of every known pool, used by the manager's
// GetPools query handler (spec.md §6).
func (m *PoolMonitor) Snapshot() []Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pools := make([]Pool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, copyPool(p))
	}
	return pools
}
