// Package hub broadcasts values to any number of subscribers.
//
// Subscribers always observe the most recent value: each subscription has a
// one-slot buffer, and a value that has not been received yet is replaced by
// the next one instead of blocking the publisher.
package hub

import (
	"context"
	"sync"
)

type subscriber[T any] struct {
	ch chan T
	mu sync.Mutex
}

// Hub fans out published values of type T.
type Hub[T any] struct {
	mu      sync.RWMutex
	subs    map[*subscriber[T]]struct{}
	latest  T
	hasLast bool
	closed  bool
	done    chan struct{}
}

// New creates an empty hub.
func New[T any]() *Hub[T] {
	return &Hub[T]{
		subs: make(map[*subscriber[T]]struct{}),
		done: make(chan struct{}),
	}
}

// Subscribe registers a subscriber. If a value has already been published it is
// delivered immediately. The channel is closed when ctx ends or the hub is closed.
func (h *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	s := &subscriber[T]{ch: make(chan T, 1)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch
	}
	h.subs[s] = struct{}{}
	if h.hasLast {
		s.ch <- h.latest
	}
	h.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				h.remove(s)
			case <-h.done:
			}
		}()
	}
	return s.ch
}

// Publish delivers v to every subscriber, replacing any undelivered value.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = v
	h.hasLast = true
	for s := range h.subs {
		s.offer(v)
	}
}

// Latest returns the most recently published value.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.hasLast
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Publish after Close is a no-op.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *Hub[T]) remove(s *subscriber[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// offer must be called with the hub lock held.
func (s *subscriber[T]) offer(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
