// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package background tracks fire-and-forget goroutines that must outlive
// the HTTP response that spawned them.
//
// The streaming tee persists conversation messages after the response body
// has been fully written. Those writes run on a Registry so a graceful
// shutdown can drain them instead of killing half-finished inserts.
package background

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Registry tracks in-flight background tasks.
//
// # Description
//
// Go launches a goroutine and registers it; Wait blocks until every
// registered task has returned or the supplied context expires. Tasks
// receive a context that is detached from any request but cancelled when
// the registry shuts down past its drain deadline.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// baseCtx is the parent for all task contexts; cancelled only after
	// Wait gives up on draining.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{baseCtx: ctx, cancel: cancel}
}

// Go runs fn on a new goroutine and tracks it until it returns.
//
// # Description
//
// The name labels the task in logs. Panics are recovered and logged so a
// bad persistence write can never take the process down. After shutdown
// has completed, new tasks run their function with an already-cancelled
// context and are expected to bail out immediately.
//
// # Inputs
//
//   - name: Short task label for diagnostics, e.g. "persist_assistant".
//   - fn: The task body. It must honor ctx cancellation.
func (r *Registry) Go(name string, fn func(ctx context.Context)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		slog.Warn("Background task submitted after shutdown", "task", name)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Background task panicked",
					"task", name,
					"panic", rec,
					"stack", string(debug.Stack()))
			}
		}()
		fn(r.baseCtx)
	}()
}

// Wait drains the registry.
//
// # Description
//
// Blocks until all registered tasks finish or ctx expires. On expiry the
// shared task context is cancelled so stragglers abort, and ctx.Err() is
// returned. Call once during graceful shutdown after the HTTP server has
// stopped accepting requests.
//
// # Outputs
//
//   - error: nil if all tasks drained, ctx.Err() on deadline.
func (r *Registry) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}
