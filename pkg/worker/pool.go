package worker

import (
	"runtime/debug"
	"sync"

	"github.com/jwalitptl/filevault-api/pkg/logger"
)

// Pool is a bounded worker pool for detached background tasks. A panic
// in one task is recovered and logged without taking down the worker.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	logger *logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool starts size workers draining a queue of queueDepth tasks.
func NewPool(size, queueDepth int, logger *logger.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueDepth <= 0 {
		queueDepth = size
	}

	p := &Pool{
		tasks:  make(chan func(), queueDepth),
		logger: logger,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runTask(task)
	}
}

func (p *Pool) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ZL.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Background task panicked")
		}
	}()
	task()
}

// Submit enqueues a task, blocking when the queue is full. Submitting
// after Stop is a no-op.
func (p *Pool) Submit(task func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.tasks <- task
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
}
