// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sessionlog persists chat sessions and conversation messages.
//
// Two implementations exist: SupabaseStore writes to the hosted Postgres via
// PostgREST, and BadgerStore keeps an embedded local log for deployments
// without a configured Supabase URL (lightweight mode). Callers on the
// streaming hot path never wait on these writes except for session creation.
package sessionlog

import (
	"context"
	"errors"

	"github.com/jonathanwmaddison/jonabot/datatypes"
)

// ErrSessionNotFound is returned by EndSession when no session row matches.
var ErrSessionNotFound = errors.New("session not found")

// Store is the persistence sink for conversation logging.
//
// # Description
//
// All methods take a caller-owned context: the tee passes a detached
// 30-second context for post-response writes, the resolver passes the
// request context for session creation (the one awaited write).
//
// Implementations must be safe for concurrent use.
type Store interface {
	// InsertSession creates a session row. An empty id asks the store to
	// generate one. Returns the stored session including its final id.
	InsertSession(ctx context.Context, id string, origin datatypes.ChatOrigin,
		metadata map[string]any) (datatypes.Session, error)

	// InsertMessage appends one conversation message. A zero rec.Timestamp
	// is filled with the current time.
	InsertMessage(ctx context.Context, rec datatypes.LogRecord) error

	// EndSession stamps ended_at on the session.
	EndSession(ctx context.Context, sessionID string) error

	// Close releases store resources. Idempotent.
	Close() error
}
