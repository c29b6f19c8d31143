package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"jnsite/internal/metrics"
)

// Job is a unit of background work. It has no result channel; failures are
// logged and counted.
type Job func(ctx context.Context) error

type task struct {
	name string
	run  Job
}

// Pool runs fire-and-forget jobs on a fixed set of goroutines.
type Pool struct {
	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool starts size workers reading from a queue of queueSize jobs.
func NewPool(size, queueSize int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.loop(i)
	}
	log.Printf("[WORKER] Pool started: workers=%d, queue=%d", size, queueSize)
	return p
}

// Submit enqueues a job without blocking. It returns false when the queue
// is full or the pool is stopped.
func (p *Pool) Submit(name string, job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.RecordWorkerJob("rejected")
		log.Printf("[WORKER] Rejected job %s: pool stopped", name)
		return false
	}
	select {
	case p.tasks <- task{name: name, run: job}:
		metrics.SetWorkerQueueDepth(len(p.tasks))
		return true
	default:
		metrics.RecordWorkerJob("rejected")
		log.Printf("[WORKER] Rejected job %s: queue full", name)
		return false
	}
}

// Stop closes the queue and waits for queued jobs to finish. If ctx ends
// first, running jobs see their context cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		log.Printf("[WORKER] Pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("worker pool drain: %w", ctx.Err())
	}
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		metrics.SetWorkerQueueDepth(len(p.tasks))
		p.run(id, t)
	}
}

func (p *Pool) run(id int, t task) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerJob("failure")
			log.Printf("[WORKER] Job %s panicked on worker %d: %v", t.name, id, r)
		}
	}()

	if err := t.run(p.ctx); err != nil {
		metrics.RecordWorkerJob("failure")
		log.Printf("[WORKER] Job %s failed: %v", t.name, err)
		return
	}
	metrics.RecordWorkerJob("success")
}
