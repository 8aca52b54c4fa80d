// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

// Package bus implements the event bus and per-VM channels described
// in spec.md §4.2 and §5: a process-wide map from VM name to a
// per-VM event sub-bus, each running its own goroutine so that events
// for one VM are delivered strictly in order while different VMs
// proceed concurrently.
package bus

import (
	"context"
	"sync"
	"time"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
)

// Event is anything that can be routed through a per-VM channel.
type Event interface {
	VMName() string
}

// DispatchFunc is invoked, in order, for every event popped off a
// VmChannel's queue. It must not return until all handling for that
// event (including any sub-reconciler suspension) is complete, since
// that completion is what the ordering guarantee is built on.
type DispatchFunc func(ctx context.Context, ch *VmChannel, ev Event)

// queueSize bounds the per-VM inbound queue (spec.md §5 "bounded
// inbound queue").
const queueSize = 64

// VmChannel is the per-VM sub-bus described in spec.md §3/§4.2. It
// owns one goroutine that drains its queue strictly in order.
type VmChannel struct {
	Name string

	mu             sync.RWMutex
	vmDef          *vmoperatorv1.VirtualMachine
	lastGeneration int64
	nodeName       string
	nodeAddresses  []string
	associated     map[string]any

	pendingMu sync.Mutex
	pending   []*PendingConsoleRequest

	queue    chan Event
	dispatch DispatchFunc
	stopCh   chan struct{}
	done     chan struct{}
}

func newVmChannel(name string, dispatch DispatchFunc) *VmChannel {
	ch := &VmChannel{
		Name:       name,
		associated: make(map[string]any),
		queue:      make(chan Event, queueSize),
		dispatch:   dispatch,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go ch.run()
	return ch
}

func (c *VmChannel) run() {
	defer close(c.done)
	ctx := context.Background()
	for {
		select {
		case ev := <-c.queue:
			c.dispatch(ctx, c, ev)
		case <-c.stopCh:
			// Drain anything already queued before the channel is torn
			// down so handlers registered just before deletion still run.
			for {
				select {
				case ev := <-c.queue:
					c.dispatch(ctx, c, ev)
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues ev for in-order delivery. It blocks if the inbound
// queue is full, providing natural backpressure on the publishers.
func (c *VmChannel) Submit(ev Event) {
	c.queue <- ev
}

// Stop drains the remaining queue and terminates the channel's
// goroutine, then blocks until it has exited. The manager calls it,
// from a separate goroutine, after handling a VM's DELETED event and
// removing the channel from the Channel Dictionary.
func (c *VmChannel) Stop() {
	close(c.stopCh)
	<-c.done
}

// QueueLen reports the number of events currently queued, for metrics
// sampling (spec.md §5 "bounded inbound queue").
func (c *VmChannel) QueueLen() int {
	return len(c.queue)
}

// VmDef returns the most recently stored VmDefinition, or nil if none
// has been published yet.
func (c *VmChannel) VmDef() *vmoperatorv1.VirtualMachine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vmDef
}

// SetVmDef stores the latest VmDefinition and reports whether its
// generation differs from the one last stored (spec.md §4.3
// "specChanged").
func (c *VmChannel) SetVmDef(vm *vmoperatorv1.VirtualMachine) (specChanged bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	specChanged = c.vmDef == nil || c.lastGeneration != vm.Generation
	c.vmDef = vm
	c.lastGeneration = vm.Generation
	return specChanged
}

// SetNodeInfo stores the node the VM's runner pod is currently
// scheduled to, the "derived extras" spec.md §3 says never persist to
// the CR itself. Callers must clear both fields (empty name, nil
// addresses) once the VM stops reporting Running, per the invariant
// that node info is empty whenever conditions[Running]=False.
func (c *VmChannel) SetNodeInfo(nodeName string, nodeAddresses []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodeName = nodeName
	c.nodeAddresses = nodeAddresses
}

// NodeInfo returns the node name and addresses last stored by
// SetNodeInfo.
func (c *VmChannel) NodeInfo() (nodeName string, nodeAddresses []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeName, c.nodeAddresses
}

// Associated returns the scratch-pad value a sub-reconciler cached
// under key, and whether it was present (spec.md §3 VmChannel).
func (c *VmChannel) Associated(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.associated[key]
	return v, ok
}

// SetAssociated stores a sub-reconciler's scratch-pad value.
func (c *VmChannel) SetAssociated(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.associated[key] = value
}

// RegisterPending records a PendingConsoleRequest so a future
// VmResourceChanged carrying a high-enough displayPasswordSerial can
// release it (spec.md §4.8).
func (c *VmChannel) RegisterPending(req *PendingConsoleRequest) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending = append(c.pending, req)
}

// NotifyStatus releases every pending request whose expected serial
// has been reached, and prunes requests past their deadline.
func (c *VmChannel) NotifyStatus(serial int64) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	now := time.Now()
	kept := c.pending[:0]
	for _, req := range c.pending {
		if serial >= req.ExpectedSerial {
			req.Latch.Release()
			continue
		}
		if now.After(req.Deadline) {
			continue
		}
		kept = append(kept, req)
	}
	c.pending = kept
}
