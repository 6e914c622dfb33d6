// Package dispatch runs state mutations on a single owning goroutine.
package dispatch

import (
	"context"
	"sync"
)

// Dispatcher schedules fn on the goroutine that owns view state.
type Dispatcher interface {
	Dispatch(fn func())
}

// Immediate runs fn on the calling goroutine.
type Immediate struct{}

func (Immediate) Dispatch(fn func()) { fn() }

// Loop owns one goroutine that runs dispatched functions in order.
// Dispatch blocks until fn has run so callers observe its effects.
//
// A dispatched function must not call Dispatch on the same Loop: the loop
// goroutine would wait on itself. Hand such work to another goroutine.
type Loop struct {
	queue   chan job
	mu      sync.Mutex
	started bool
	running bool
	done    chan struct{}
}

type job struct {
	fn   func()
	done chan struct{}
}

// NewLoop creates a loop with room for size pending functions.
func NewLoop(size int) *Loop {
	if size < 1 {
		size = 1
	}
	return &Loop{
		queue: make(chan job, size),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled. Functions still queued when
// ctx ends are run before Run returns. A Loop runs once; later calls to Run
// return immediately.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		l.drain()
		close(l.done)
	}()

	for {
		select {
		case j := <-l.queue:
			j.fn()
			close(j.done)
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		select {
		case j := <-l.queue:
			j.fn()
			close(j.done)
		default:
			return
		}
	}
}

// Dispatch queues fn and waits for it. When the loop is not running, fn
// runs on the caller's goroutine.
func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if !running {
		fn()
		return
	}

	j := job{fn: fn, done: make(chan struct{})}
	select {
	case l.queue <- j:
	case <-l.done:
		fn()
		return
	}
	select {
	case <-j.done:
	case <-l.done:
		// Run exited after j was queued. Whoever receives j runs it.
		l.drain()
		<-j.done
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
