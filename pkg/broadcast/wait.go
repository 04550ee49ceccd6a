package broadcast

import (
	"sync"
	"time"
)

// WaitBroadcastChannel sends each subscriber a reply channel and collects one value back from each of them.
type WaitBroadcastChannel[T any] struct {
	mu        sync.RWMutex
	listeners []chan chan T
}

func NewWaitBroadcastChannel[T any]() *WaitBroadcastChannel[T] {
	return &WaitBroadcastChannel[T]{}
}

func (w *WaitBroadcastChannel[T]) Subscribe() chan chan T {
	ch := make(chan chan T, 1)

	w.mu.Lock()
	w.listeners = append(w.listeners, ch)
	w.mu.Unlock()

	return ch
}

// PublishAndWait returns each value provided by the listeners, and a boolean indicating whether the operation timed
// out waiting for responses.
func (w *WaitBroadcastChannel[T]) PublishAndWait(timeout time.Duration) ([]T, bool) {
	w.mu.RLock()
	listeners := append([]chan chan T(nil), w.listeners...)
	w.mu.RUnlock()

	if len(listeners) == 0 {
		return nil, false
	}

	replies := make(chan T, len(listeners))
	for _, listener := range listeners {
		select {
		case listener <- replies:
		default: // Already signalled by a previous publish
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	results := make([]T, 0, len(listeners))
	for len(results) < len(listeners) {
		select {
		case v := <-replies:
			results = append(results, v)
		case <-timer.C:
			return results, true
		}
	}

	return results, false
}
