// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineRunsJobsInOrder(t *testing.T) {
	p := NewPipeline(8)
	defer p.Stop()

	var mu sync.Mutex
	var seen []int
	var wg sync.WaitGroup

	const n = 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		p.Submit(func() {
			mu.Lock()
			seen = append(seen, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, i, seen[i])
	}
}

func TestPipelineStopDrainsQueuedJobs(t *testing.T) {
	p := NewPipeline(8)

	ran := false
	p.Submit(func() { ran = true })
	p.Stop()

	assert.True(t, ran)
}
