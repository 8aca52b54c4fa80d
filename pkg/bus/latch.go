// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package bus

import (
	"context"
	"sync"
	"time"
)

// Latch is a single-slot completion signal: the idiomatic Go stand-in
// for the Java CompletableFuture the source uses to suspend a handler
// until an asynchronous confirmation arrives or a deadline elapses
// (spec.md §5 "Suspension points").
type Latch struct {
	ch   chan struct{}
	once sync.Once
}

// NewLatch returns an unreleased Latch.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Release unblocks every Wait call, exactly once.
func (l *Latch) Release() {
	l.once.Do(func() { close(l.ch) })
}

// Wait blocks until Release is called or ctx is done, returning true
// only in the former case.
func (l *Latch) Wait(ctx context.Context) bool {
	select {
	case <-l.ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// PendingConsoleRequest is created when the Display-Secret
// sub-reconciler rotates a password and must wait for the runner to
// confirm it (spec.md §3, §4.8).
type PendingConsoleRequest struct {
	ExpectedSerial int64
	Deadline       time.Time
	Latch          *Latch
}
