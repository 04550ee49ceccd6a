package broadcast

import (
	"context"
	"sync"
)

// BroadcastChannel fans a value out to every subscriber. Publishing never blocks: a subscriber whose buffer is full
// misses the value, so subscribers should treat values as "something changed" notifications rather than a log.
type BroadcastChannel[T any] struct {
	mu        sync.RWMutex
	listeners map[*listener[T]]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

type listener[T any] struct {
	ch     chan T
	closed bool
}

func NewBroadcastChannel[T any]() *BroadcastChannel[T] {
	return &BroadcastChannel[T]{
		listeners: make(map[*listener[T]]struct{}),
		done:      make(chan struct{}),
	}
}

// Subscribe registers a listener with the given buffer size. The returned channel is closed, and the listener
// removed, once ctx is done. Cancelling ctx is how a torn-down view stops receiving updates. Subscribing after
// CloseAll returns a closed channel.
func (b *BroadcastChannel[T]) Subscribe(ctx context.Context, buffer int) <-chan T {
	l := &listener[T]{ch: make(chan T, buffer)}

	b.mu.Lock()
	select {
	case <-b.done:
		b.mu.Unlock()
		close(l.ch)
		return l.ch
	default:
	}

	b.listeners[l] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.remove(l)
		case <-b.done:
		}
	}()

	return l.ch
}

func (b *BroadcastChannel[T]) Publish(value T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for l := range b.listeners {
		select {
		case l.ch <- value:
		default:
		}
	}
}

func (b *BroadcastChannel[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// CloseAll closes every subscriber's channel. The channel accepts no further subscribers afterwards.
func (b *BroadcastChannel[T]) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeOnce.Do(func() {
		close(b.done)
	})

	for l := range b.listeners {
		l.closed = true
		close(l.ch)
	}
	b.listeners = make(map[*listener[T]]struct{})
}

func (b *BroadcastChannel[T]) remove(l *listener[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l.closed {
		return
	}

	l.closed = true
	delete(b.listeners, l)
	close(l.ch)
}
