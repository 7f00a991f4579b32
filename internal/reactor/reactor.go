// ABOUTME: Single-goroutine task executor: every submitted func runs in submission order
// ABOUTME: Go is fire-and-forget, Do blocks until the func ran; panics are recovered and logged

package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mauromedda/posoverlay/internal/log"
)

// DefaultQueue is the task backlog used when New is given a non-positive size.
const DefaultQueue = 256

// ErrStopped is returned when submitting to a reactor that has stopped.
var ErrStopped = errors.New("reactor stopped")

// Reactor serializes work onto one goroutine. Funcs submitted from the same
// goroutine run in submission order; none run concurrently with each other.
type Reactor struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	// mu is held for reading while a task is being queued so that the final
	// drain sees every task Go accepted.
	mu      sync.RWMutex
	stopped bool
	once    sync.Once
}

// New returns a reactor with a backlog of queue tasks. Call Run to start it.
func New(queue int) *Reactor {
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Reactor{
		tasks: make(chan func(), queue),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled or Stop is called. Tasks already
// queued when it stops are still executed.
func (r *Reactor) Run(ctx context.Context) error {
	defer close(r.done)
	for {
		select {
		case fn := <-r.tasks:
			execute(fn)
		case <-r.quit:
			r.drain()
			return nil
		case <-ctx.Done():
			r.Stop()
			r.drain()
			return nil
		}
	}
}

func (r *Reactor) drain() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	for {
		select {
		case fn := <-r.tasks:
			execute(fn)
		default:
			return
		}
	}
}

// Stop refuses new tasks and lets Run return after the backlog.
func (r *Reactor) Stop() {
	r.once.Do(func() { close(r.quit) })
}

// Done is closed once Run has returned.
func (r *Reactor) Done() <-chan struct{} { return r.done }

// Go queues fn without waiting for it. It blocks only while the backlog is full.
func (r *Reactor) Go(fn func()) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrStopped
	}
	select {
	case r.tasks <- fn:
		return nil
	case <-r.quit:
		return ErrStopped
	}
}

// Do runs fn on the reactor and returns its error once it has run. It must not
// be called from a task, which would wait on itself.
func (r *Reactor) Do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	err := r.Go(func() {
		res <- guarded(fn)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		select {
		case err := <-res:
			return err
		default:
			return ErrStopped
		}
	}
}

func execute(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("reactor: task panicked: %v", p)
		}
	}()
	fn()
}

func guarded(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return fn()
}
