// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package monitor implements the VM, Pod, Pool and Display-Secret
// monitors (spec.md §4.3-§4.5, §4.13): the components that turn raw
// Resource Observer events into the typed bus events the Reconciler and
// Pool Monitor consume.
package monitor

import (
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/jdrupes-go/vmoperator/pkg/constants"
	"github.com/jdrupes-go/vmoperator/pkg/metricsexporter"
	"github.com/jdrupes-go/vmoperator/pkg/observer"
)

// PendingPodChange is a pod event the Pod Monitor could not yet route
// to a VM channel because the VM is not (or not yet) known (spec.md §3,
// "Boundary behaviours").
type PendingPodChange struct {
	VMName     string
	Type       observer.EventType
	Pod        *corev1.Pod
	EnqueuedAt time.Time
}

// pendingPodChanges buffers PendingPodChange entries per VM name until
// the VM channel becomes known, discarding entries older than
// constants.PendingPodChangeTTL.
type pendingPodChanges struct {
	mu      sync.Mutex
	byVM    map[string][]PendingPodChange
}

func newPendingPodChanges() *pendingPodChanges {
	return &pendingPodChanges{byVM: make(map[string][]PendingPodChange)}
}

// Add buffers change, first dropping any of that VM's existing entries
// that have already exceeded the TTL.
func (p *pendingPodChanges) Add(change PendingPodChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byVM[change.VMName] = appendFresh(p.byVM[change.VMName], change)
	p.reportSizeLocked()
}

// Take returns and removes every buffered change for vmName that is
// still within the TTL.
func (p *pendingPodChanges) Take(vmName string) []PendingPodChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	changes := freshOnly(p.byVM[vmName])
	delete(p.byVM, vmName)
	p.reportSizeLocked()
	return changes
}

// Purge drops every entry, across all VMs, older than the TTL. The Pod
// Monitor runs this on its own ticker, once per TTL, so VMs that never
// arrive don't leak buffered pod events forever.
func (p *pendingPodChanges) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for vm, changes := range p.byVM {
		fresh := freshOnly(changes)
		if len(fresh) == 0 {
			delete(p.byVM, vm)
		} else {
			p.byVM[vm] = fresh
		}
	}
	p.reportSizeLocked()
}

// reportSizeLocked publishes the total buffered-change count for the
// pending_pod_changes gauge. Callers must hold p.mu.
func (p *pendingPodChanges) reportSizeLocked() {
	total := 0
	for _, changes := range p.byVM {
		total += len(changes)
	}
	metricsexporter.PendingPodChanges.Set(float64(total))
}

func appendFresh(existing []PendingPodChange, change PendingPodChange) []PendingPodChange {
	fresh := freshOnly(existing)
	return append(fresh, change)
}

func freshOnly(changes []PendingPodChange) []PendingPodChange {
	cutoff := time.Now().Add(-constants.PendingPodChangeTTL)
	kept := make([]PendingPodChange, 0, len(changes))
	for _, c := range changes {
		if c.EnqueuedAt.After(cutoff) {
			kept = append(kept, c)
		}
	}
	return kept
}
