// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch runs a slice of independent operations with a bound
// on how many are in flight at once. Higher-level fan-out (avatar
// prefetch, vcard refresh, bulk room subscription) goes through Run
// so a large roster never floods the server with parallel requests.
package batch

import (
	"context"
	"fmt"
	"sync"
)

// DefaultLimit is the in-flight cap used when Run is called with a
// non-positive limit. Tuned for metadata fan-out against a single
// backend endpoint.
const DefaultLimit = 3

// Result is the outcome of one item. Index is the item's position in
// the input slice; Err is nil on success.
type Result struct {
	Index int
	Err   error
}

// Err returns the first non-nil item error, or nil if every item
// succeeded.
func Err(results []Result) error {
	for _, result := range results {
		if result.Err != nil {
			return result.Err
		}
	}
	return nil
}

// Run invokes op once per item with at most limit invocations in
// flight; as one settles, the next queued item starts. Run returns
// only after every item has settled, with one Result per item in
// input order.
//
// A failing or panicking op is captured in its item's Result and
// never delays or drops sibling items. Cancelling ctx stops new items
// from starting (they settle with ctx's error); items already in
// flight are still awaited.
func Run[T any](ctx context.Context, items []T, op func(context.Context, T) error, limit int) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	results := make([]Result, len(items))
	inFlight := make(chan struct{}, limit)
	var pending sync.WaitGroup

	for i, item := range items {
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = fmt.Errorf("batch: item %d not started: %w", i, err)
			continue
		}
		select {
		case inFlight <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = fmt.Errorf("batch: item %d not started: %w", i, ctx.Err())
			continue
		}
		pending.Add(1)
		i, item := i, item
		go func() {
			defer pending.Done()
			defer func() { <-inFlight }()
			results[i].Err = runOne(ctx, item, op)
		}()
	}

	pending.Wait()
	return results
}

// runOne runs op for a single item, converting a panic into an error.
func runOne[T any](ctx context.Context, item T, op func(context.Context, T) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("batch: operation panicked: %v", p)
		}
	}()
	return op(ctx, item)
}
