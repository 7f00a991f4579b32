// ABOUTME: Typed event bus fanning station events out to subscribers in subscription order
// ABOUTME: Channel subscriptions never block the publisher; events that do not fit are counted as dropped

package eventbus

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Handler is a callback function for events.
type Handler[T any] func(T)

type subscriber[T any] struct {
	id      int
	handler Handler[T]
}

// Bus is a typed event bus that delivers events to registered handlers.
type Bus[T any] struct {
	mu      sync.RWMutex
	subs    []subscriber[T]
	nextID  int
	dropped atomic.Uint64
}

// New creates a new event bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers a handler and returns an unsubscribe function.
func (b *Bus[T]) Subscribe(handler Handler[T]) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber[T]{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscriber[T]) bool { return s.id == id })
			b.mu.Unlock()
		})
	}
}

// Channel subscribes a buffered channel. Publish never waits on it: an event
// arriving while the buffer is full is dropped. The returned function
// unsubscribes and closes the channel.
func (b *Bus[T]) Channel(buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)
	var mu sync.Mutex
	closed := false
	unsub := b.Subscribe(func(ev T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	})
	return ch, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// Publish sends an event to all registered handlers, synchronously and in
// subscription order.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	snapshot := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		s.handler(event)
	}
}

// Count returns the number of registered handlers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many events channel subscribers missed.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }
