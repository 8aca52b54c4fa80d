// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vmoperatorv1 "github.com/jdrupes-go/vmoperator/pkg/apis/vmoperator/v1"
)

func TestVmChannelSetVmDefReportsSpecChanged(t *testing.T) {
	ch := newVmChannel("vm1", func(ctx context.Context, ch *VmChannel, ev Event) {})
	defer ch.Stop()

	vm := &vmoperatorv1.VirtualMachine{}
	vm.Generation = 1
	assert.True(t, ch.SetVmDef(vm), "first observation is always a spec change")

	sameGen := &vmoperatorv1.VirtualMachine{}
	sameGen.Generation = 1
	assert.False(t, ch.SetVmDef(sameGen))

	nextGen := &vmoperatorv1.VirtualMachine{}
	nextGen.Generation = 2
	assert.True(t, ch.SetVmDef(nextGen))
}

func TestVmChannelAssociatedRoundTrip(t *testing.T) {
	ch := newVmChannel("vm1", func(ctx context.Context, ch *VmChannel, ev Event) {})
	defer ch.Stop()

	_, ok := ch.Associated("missing")
	assert.False(t, ok)

	ch.SetAssociated("key", 42)
	v, ok := ch.Associated("key")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestVmChannelNodeInfoRoundTrip(t *testing.T) {
	ch := newVmChannel("vm1", func(ctx context.Context, ch *VmChannel, ev Event) {})
	defer ch.Stop()

	name, addrs := ch.NodeInfo()
	assert.Empty(t, name)
	assert.Empty(t, addrs)

	ch.SetNodeInfo("node-1", []string{"10.0.0.5"})
	name, addrs = ch.NodeInfo()
	assert.Equal(t, "node-1", name)
	assert.Equal(t, []string{"10.0.0.5"}, addrs)
}

func TestVmChannelQueueLenTracksBacklog(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	ch := newVmChannel("vm1", func(ctx context.Context, ch *VmChannel, ev Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	defer func() {
		close(release)
		ch.Stop()
	}()

	ch.Submit(recordedEvent{vm: "vm1", n: 1})
	<-started // first event now being handled, queue empty
	ch.Submit(recordedEvent{vm: "vm1", n: 2})
	ch.Submit(recordedEvent{vm: "vm1", n: 3})

	assert.Eventually(t, func() bool { return ch.QueueLen() == 2 }, time.Second, time.Millisecond)
}

func TestVmChannelStopDrainsQueue(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	ch := newVmChannel("vm1", func(ctx context.Context, ch *VmChannel, ev Event) {
		re := ev.(recordedEvent)
		mu.Lock()
		seen = append(seen, re.n)
		mu.Unlock()
	})

	ch.Submit(recordedEvent{vm: "vm1", n: 1})
	ch.Submit(recordedEvent{vm: "vm1", n: 2})
	ch.Stop()

	assert.Equal(t, []int{1, 2}, seen)
}

func TestVmChannelNotifyStatusReleasesReachedSerials(t *testing.T) {
	ch := newVmChannel("vm1", func(ctx context.Context, ch *VmChannel, ev Event) {})
	defer ch.Stop()

	latch := NewLatch()
	ch.RegisterPending(&PendingConsoleRequest{
		ExpectedSerial: 5,
		Deadline:       time.Now().Add(time.Minute),
		Latch:          latch,
	})

	ch.NotifyStatus(3)
	assert.False(t, latch.Wait(immediatelyExpiredContext()))

	ch.NotifyStatus(5)
	assert.True(t, latch.Wait(context.Background()))
}

func TestVmChannelNotifyStatusPrunesExpired(t *testing.T) {
	ch := newVmChannel("vm1", func(ctx context.Context, ch *VmChannel, ev Event) {})
	defer ch.Stop()

	latch := NewLatch()
	ch.RegisterPending(&PendingConsoleRequest{
		ExpectedSerial: 100,
		Deadline:       time.Now().Add(-time.Second),
		Latch:          latch,
	})

	ch.NotifyStatus(1)
	assert.Empty(t, ch.pending)
}

func immediatelyExpiredContext() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	cancel()
	return ctx
}
