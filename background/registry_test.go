// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package background

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistry_WaitDrainsAllTasks verifies Wait blocks until every
// registered task has returned.
func TestRegistry_WaitDrainsAllTasks(t *testing.T) {
	r := NewRegistry()
	var done atomic.Int32

	for i := 0; i < 5; i++ {
		r.Go("work", func(ctx context.Context) {
			time.Sleep(20 * time.Millisecond)
			done.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
	assert.Equal(t, int32(5), done.Load())
}

// TestRegistry_WaitDeadline verifies Wait gives up on a stuck task and
// cancels the shared context so it can abort.
func TestRegistry_WaitDeadline(t *testing.T) {
	r := NewRegistry()
	released := make(chan struct{})

	r.Go("stuck", func(ctx context.Context) {
		<-ctx.Done()
		close(released)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled after drain deadline")
	}
}

// TestRegistry_GoAfterShutdownIsDropped verifies late submissions do not
// run and do not panic.
func TestRegistry_GoAfterShutdownIsDropped(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))

	ran := make(chan struct{})
	r.Go("late", func(ctx context.Context) { close(ran) })
	select {
	case <-ran:
		t.Fatal("task submitted after shutdown must not run")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestRegistry_RecoversTaskPanic verifies a panicking task is contained.
func TestRegistry_RecoversTaskPanic(t *testing.T) {
	r := NewRegistry()
	r.Go("explode", func(ctx context.Context) { panic("boom") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Wait(ctx), "panic must not wedge the drain")
}
