// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sessionlog

import (
	"context"
	"testing"
	"time"

	"github.com/jonathanwmaddison/jonabot/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestBadgerStore_InsertSessionGeneratesID verifies an empty id yields a
// fresh UUID and the row round-trips.
func TestBadgerStore_InsertSessionGeneratesID(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	session, err := store.InsertSession(ctx, "", datatypes.OriginGeneralChat,
		map[string]any{"ip": "203.0.113.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionID)
	assert.Nil(t, session.EndedAt)

	got, err := store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, got.SessionID)
	assert.Equal(t, datatypes.OriginGeneralChat, got.ChatOrigin)
	assert.Equal(t, "203.0.113.1", got.Metadata["ip"])
}

// TestBadgerStore_InsertSessionKeepsClientID verifies a supplied id is
// stored as-is.
func TestBadgerStore_InsertSessionKeepsClientID(t *testing.T) {
	store := newTestBadgerStore(t)

	session, err := store.InsertSession(context.Background(),
		"client-id-7", datatypes.OriginHuggingFace, nil)
	require.NoError(t, err)
	assert.Equal(t, "client-id-7", session.SessionID)
}

// TestBadgerStore_MessagesReplayInOrder verifies the key layout preserves
// chronology within a session and isolates sessions from each other.
func TestBadgerStore_MessagesReplayInOrder(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	recs := []datatypes.LogRecord{
		{SessionID: "s1", Role: "user", Message: "first", ChatOrigin: datatypes.OriginGeneralChat, Timestamp: base},
		{SessionID: "s1", Role: "assistant", Message: "second", ChatOrigin: datatypes.OriginGeneralChat, Timestamp: base.Add(time.Second)},
		{SessionID: "s2", Role: "user", Message: "other session", ChatOrigin: datatypes.OriginGeneralChat, Timestamp: base},
	}
	for _, rec := range recs {
		require.NoError(t, store.InsertMessage(ctx, rec))
	}

	got, err := store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "second", got[1].Message)

	other, err := store.ListMessages(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "other session", other[0].Message)
}

// TestBadgerStore_EndSession verifies the ended_at stamp and the not-found
// sentinel.
func TestBadgerStore_EndSession(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	session, err := store.InsertSession(ctx, "", datatypes.OriginGeneralChat, nil)
	require.NoError(t, err)

	require.NoError(t, store.EndSession(ctx, session.SessionID))
	got, err := store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)

	err = store.EndSession(ctx, "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
