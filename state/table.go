// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package state holds the normalized in-memory model of a messaging
// session: the roster, the room list, and per-peer conversations.
//
// Every store is a copy-on-write keyed table. A mutation installs a
// fresh top-level map; entries it did not touch keep their previous
// pointers. Reference equality is therefore a valid and cheap change
// test, and a snapshot taken before a mutation stays valid forever.
//
// Observers attach through selector subscriptions: a selector is a
// pure projection over the table's snapshot, and the observer is
// notified only when the projected value changes. An update to one
// entry never notifies a selector that projects a different entry.
//
// Each store has exactly one writer (its own mutation methods, driven
// by the session loop). Reads are safe from any goroutine at any
// time.
package state

import (
	"log/slog"
	"sync"
)

// Unwatch cancels a selector subscription. Idempotent; after the
// first call the observer receives no further notifications.
type Unwatch func()

// Table is a copy-on-write map from K to V with selector
// subscriptions. V is typically a pointer to an immutable record:
// mutations replace the pointer rather than writing through it.
type Table[K comparable, V any] struct {
	mu          sync.Mutex
	name        string
	logger      *slog.Logger
	entries     map[K]V
	watchers    map[uint64]func(map[K]V)
	nextWatcher uint64
}

// NewTable returns an empty table. The name appears in diagnostic
// warnings. A nil logger falls back to slog.Default.
func NewTable[K comparable, V any](name string, logger *slog.Logger) *Table[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table[K, V]{
		name:     name,
		logger:   logger,
		entries:  make(map[K]V),
		watchers: make(map[uint64]func(map[K]V)),
	}
}

// Get returns the entry for key.
func (t *Table[K, V]) Get(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.entries[key]
	return value, ok
}

// Len returns the number of entries.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot returns the current top-level map. The map is never
// written again after being installed; callers must treat it as
// read-only.
func (t *Table[K, V]) Snapshot() map[K]V {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries
}

// mutate runs apply on the current map under the table lock. apply
// must return a new map (never write the one it was given) and
// whether anything changed. On change, the new map is installed and
// every watcher runs outside the lock.
func (t *Table[K, V]) mutate(apply func(map[K]V) (map[K]V, bool)) {
	t.mu.Lock()
	next, changed := apply(t.entries)
	if !changed {
		t.mu.Unlock()
		return
	}
	t.entries = next
	watchers := make([]func(map[K]V), 0, len(t.watchers))
	for _, watcher := range t.watchers {
		watchers = append(watchers, watcher)
	}
	t.mu.Unlock()

	for _, watcher := range watchers {
		watcher(next)
	}
}

// clone copies the top-level map. Values are shared: only the map
// structure is new.
func clone[K comparable, V any](entries map[K]V) map[K]V {
	next := make(map[K]V, len(entries)+1)
	for key, value := range entries {
		next[key] = value
	}
	return next
}

// Put inserts or replaces the entry for key.
func (t *Table[K, V]) Put(key K, value V) {
	t.mutate(func(entries map[K]V) (map[K]V, bool) {
		next := clone(entries)
		next[key] = value
		return next, true
	})
}

// Update replaces the entry for key with fn(current). If the key is
// absent, Update logs a warning and changes nothing. If fn returns a
// value equal to what it was given (pointer-equal for pointer V),
// nothing is installed and no watcher runs.
func (t *Table[K, V]) Update(key K, fn func(V) V) {
	t.mutate(func(entries map[K]V) (map[K]V, bool) {
		current, ok := entries[key]
		if !ok {
			t.logger.Warn("update of unknown entry ignored", "store", t.name, "key", key)
			return entries, false
		}
		updated := fn(current)
		if any(updated) == any(current) {
			return entries, false
		}
		next := clone(entries)
		next[key] = updated
		return next, true
	})
}

// Delete removes the entry for key. Deleting an absent key logs a
// warning and changes nothing.
func (t *Table[K, V]) Delete(key K) {
	t.mutate(func(entries map[K]V) (map[K]V, bool) {
		if _, ok := entries[key]; !ok {
			t.logger.Warn("delete of unknown entry ignored", "store", t.name, "key", key)
			return entries, false
		}
		next := clone(entries)
		delete(next, key)
		return next, true
	})
}

// Replace swaps in a whole new entry set as a single mutation: one
// notification pass regardless of how many entries changed. The input
// map is copied; the caller keeps ownership of it.
func (t *Table[K, V]) Replace(entries map[K]V) {
	t.mutate(func(map[K]V) (map[K]V, bool) {
		return clone(entries), true
	})
}

// Reset clears the table. Resetting an already-empty table notifies
// nobody.
func (t *Table[K, V]) Reset() {
	t.mutate(func(entries map[K]V) (map[K]V, bool) {
		if len(entries) == 0 {
			return entries, false
		}
		return make(map[K]V), true
	})
}

// Watch subscribes onChange to a projection of the table. onChange
// fires once immediately with the current projection, then after any
// mutation that changes the projected value (compared with ==).
// Notifications for distinct watchers of one mutation run in
// unspecified order; notifications for one watcher are serialized and
// arrive in commit order, the initial one first. onChange must not
// mutate the table.
//
// Cancelling is synchronous: after Unwatch returns, onChange is not
// called again by future mutations. A mutation already past the
// point of collecting watchers may still deliver one final
// notification.
func Watch[K comparable, V any, S comparable](t *Table[K, V], selector func(map[K]V) S, onChange func(S)) Unwatch {
	// deliver is held across registration and the initial
	// notification: a mutation committing while Watch is still
	// delivering blocks in the watcher until the initial value is
	// out, so last is never touched by two goroutines at once.
	var deliver sync.Mutex
	deliver.Lock()

	t.mu.Lock()
	t.nextWatcher++
	id := t.nextWatcher
	last := selector(t.entries)
	t.watchers[id] = func(entries map[K]V) {
		deliver.Lock()
		defer deliver.Unlock()
		next := selector(entries)
		if next == last {
			return
		}
		last = next
		onChange(next)
	}
	t.mu.Unlock()

	onChange(last)
	deliver.Unlock()
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.watchers, id)
	}
}

// WatchSlice is Watch for slice-valued projections. The projection is
// considered unchanged when both slices have the same length and
// identical elements (== per element, so pointer identity for
// pointer element types).
func WatchSlice[K comparable, V any, E comparable](t *Table[K, V], selector func(map[K]V) []E, onChange func([]E)) Unwatch {
	var deliver sync.Mutex
	deliver.Lock()

	t.mu.Lock()
	t.nextWatcher++
	id := t.nextWatcher
	last := selector(t.entries)
	t.watchers[id] = func(entries map[K]V) {
		deliver.Lock()
		defer deliver.Unlock()
		next := selector(entries)
		if equalSlices(next, last) {
			return
		}
		last = next
		onChange(next)
	}
	t.mu.Unlock()

	onChange(last)
	deliver.Unlock()
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.watchers, id)
	}
}

// WatchAll subscribes onChange to every committed mutation, receiving
// the new top-level map. Fires once immediately with the current map,
// before any mutation-driven notification.
func (t *Table[K, V]) WatchAll(onChange func(map[K]V)) Unwatch {
	var deliver sync.Mutex
	deliver.Lock()

	t.mu.Lock()
	t.nextWatcher++
	id := t.nextWatcher
	initial := t.entries
	t.watchers[id] = func(entries map[K]V) {
		deliver.Lock()
		defer deliver.Unlock()
		onChange(entries)
	}
	t.mu.Unlock()

	onChange(initial)
	deliver.Unlock()
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.watchers, id)
	}
}

func equalSlices[E comparable](a, b []E) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
