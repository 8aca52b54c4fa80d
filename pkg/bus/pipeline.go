// Copyright (C) 2024, the vmoperator authors.
// Licensed under the Universal Permissive License v 1.0 as shown at https://oss.oracle.com/licenses/upl.

package bus

// Pipeline is a single-threaded job queue: a lighter-weight cousin of
// VmChannel for subsystems that need one ordered stream across the
// whole process rather than one per VM. The Pool Monitor uses it so
// that VmPoolChanged observers never interleave with their own
// reconciliation side effects (spec.md §4.5).
type Pipeline struct {
	jobs chan func()
	done chan struct{}
}

// NewPipeline starts a Pipeline with the given inbound queue depth.
func NewPipeline(queueDepth int) *Pipeline {
	p := &Pipeline{
		jobs: make(chan func(), queueDepth),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Pipeline) run() {
	for job := range p.jobs {
		job()
	}
	close(p.done)
}

// Submit enqueues job for ordered, single-threaded execution.
func (p *Pipeline) Submit(job func()) {
	p.jobs <- job
}

// Stop closes the queue and waits for the worker goroutine to drain
// and exit.
func (p *Pipeline) Stop() {
	close(p.jobs)
	<-p.done
}
