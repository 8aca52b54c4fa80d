// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatchReleaseUnblocksWait(t *testing.T) {
	l := NewLatch()
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, l.Wait(ctx))
}

func TestLatchWaitTimesOutWithoutRelease(t *testing.T) {
	l := NewLatch()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.False(t, l.Wait(ctx))
}

func TestLatchReleaseIsIdempotent(t *testing.T) {
	l := NewLatch()
	assert.NotPanics(t, func() {
		l.Release()
		l.Release()
	})
	assert.True(t, l.Wait(context.Background()))
}
