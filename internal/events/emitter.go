// Package events provides a small typed publish/subscribe emitter.
// An Emitter is a value owned by whatever publishes through it; there is no
// global bus and no queuing. Emit calls every handler synchronously, in
// registration order, before returning.
package events

import "sync"

// Subscription identifies a registered handler so it can be removed with Off.
type Subscription uint64

// Emitter delivers payloads of type T to subscribed handlers.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu       sync.Mutex
	next     Subscription
	handlers []handler[T]
}

type handler[T any] struct {
	id Subscription
	fn func(T)
}

// On registers fn and returns its subscription.
func (e *Emitter[T]) On(fn func(T)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.handlers = append(e.handlers, handler[T]{id: e.next, fn: fn})
	return e.next
}

// Off removes a handler. Unknown subscriptions are ignored.
func (e *Emitter[T]) Off(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h.id == sub {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit calls every handler registered at the time of the call with payload.
// Handlers may subscribe or unsubscribe while running; changes apply to the
// next Emit.
func (e *Emitter[T]) Emit(payload T) {
	e.mu.Lock()
	hs := make([]handler[T], len(e.handlers))
	copy(hs, e.handlers)
	e.mu.Unlock()

	for _, h := range hs {
		h.fn(payload)
	}
}

// Len returns the number of registered handlers.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
