// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the chat backend.
//
// Currently this is rate limiting for the contact endpoint. The limiter is
// an injected interface so deployments behind shared infrastructure can
// swap in a distributed implementation without touching the handler.
package middleware

import (
	"sync"
	"time"
)

// RateLimiter decides whether a caller identified by key may proceed.
//
// Allow records the attempt when it returns true. Implementations must be
// safe for concurrent use.
type RateLimiter interface {
	Allow(key string) bool
}

// slidingWindowLimiter is an in-process sliding-window limiter.
//
// # Description
//
// Keeps per-key timestamps of recent allowed attempts and admits a new one
// only when fewer than limit attempts fall inside the trailing window.
// State is process-local: horizontally scaled deployments get a per-replica
// budget, which is acceptable for a low-volume contact form.
type slidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time

	// now is swapped in tests to drive the clock.
	now func() time.Time
}

// NewSlidingWindowLimiter creates a limiter admitting at most limit
// attempts per key within the trailing window.
func NewSlidingWindowLimiter(limit int, window time.Duration) RateLimiter {
	return &slidingWindowLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow implements the RateLimiter interface.
func (l *slidingWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}
