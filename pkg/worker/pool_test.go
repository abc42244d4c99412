package worker

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/filevault-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Output: io.Discard})
}

func TestPoolRunsTasks(t *testing.T) {
	pool := NewPool(4, 16, testLogger())

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
	}
	wg.Wait()
	pool.Stop()

	assert.EqualValues(t, 20, count.Load())
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := NewPool(1, 4, testLogger())

	done := make(chan struct{})
	pool.Submit(func() {
		panic("task blew up")
	})
	// The worker survives the panic and keeps draining the queue.
	pool.Submit(func() {
		close(done)
	})

	<-done
	pool.Stop()
}

func TestPoolSubmitAfterStopIsNoop(t *testing.T) {
	pool := NewPool(1, 1, testLogger())
	pool.Stop()

	assert.NotPanics(t, func() {
		pool.Submit(func() {})
	})
}

func TestPoolStopWaitsForInflight(t *testing.T) {
	pool := NewPool(2, 4, testLogger())

	var finished atomic.Bool
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		finished.Store(true)
	})

	<-started
	pool.Stop()
	assert.True(t, finished.Load())
}
