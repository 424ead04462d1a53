// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"log/slog"
	"sync"
)

// Disposer detaches one registered handler. The first call removes
// the handler; further calls are no-ops.
type Disposer func()

// Registry is the binding registry: per topic, an ordered list of
// handlers. Handlers for one topic fire in registration order; there
// is no ordering guarantee across topics. The registry holds no
// business state beyond the bindings themselves.
//
// Registry is safe for concurrent use. Dispatch does not hold the
// registry lock while handlers run, so handlers may register,
// dispose, and dispatch freely without deadlocking.
type Registry struct {
	mu       sync.Mutex
	logger   *slog.Logger
	nextID   uint64
	bindings map[string][]*binding
}

type binding struct {
	id      uint64
	invoke  func(payload any)
	removed bool
}

// NewRegistry returns an empty registry reporting handler failures to
// logger. A nil logger falls back to slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		bindings: make(map[string][]*binding),
	}
}

// Register attaches handler to topic and returns its Disposer.
func Register[T any](r *Registry, topic Topic[T], handler func(T)) Disposer {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	bound := &binding{
		id:     r.nextID,
		invoke: func(payload any) { handler(payload.(T)) },
	}
	r.bindings[topic.name] = append(r.bindings[topic.name], bound)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if bound.removed {
			return
		}
		bound.removed = true
		list := r.bindings[topic.name]
		for i, candidate := range list {
			if candidate == bound {
				r.bindings[topic.name] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Dispatch invokes every handler registered for topic at call time,
// in registration order. A handler disposed by an earlier handler of
// the same dispatch does not fire; a handler registered during the
// dispatch fires only on later dispatches.
//
// A panicking handler is recovered and reported to the registry's
// logger; remaining handlers still run and the panic never reaches
// the emitter.
func Dispatch[T any](r *Registry, topic Topic[T], payload T) {
	r.mu.Lock()
	snapshot := append([]*binding(nil), r.bindings[topic.name]...)
	r.mu.Unlock()

	for _, bound := range snapshot {
		r.mu.Lock()
		removed := bound.removed
		r.mu.Unlock()
		if removed {
			continue
		}
		r.invokeOne(topic.name, bound, payload)
	}
}

func (r *Registry) invokeOne(name string, bound *binding, payload any) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("event handler panicked", "event", name, "panic", p)
		}
	}()
	bound.invoke(payload)
}

// HandlerCount returns the number of live handlers for topic.
// Intended for observers that want to warn about events nobody is
// listening to.
func HandlerCount[T any](r *Registry, topic Topic[T]) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings[topic.name])
}

// Join combines disposers into one. Calling the result disposes each
// underlying disposer; a panicking disposer does not stop the rest.
// Nil entries are skipped.
func Join(disposers ...Disposer) Disposer {
	return func() {
		for _, dispose := range disposers {
			if dispose == nil {
				continue
			}
			func() {
				defer func() { _ = recover() }()
				dispose()
			}()
		}
	}
}
