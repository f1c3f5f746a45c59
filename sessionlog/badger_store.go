// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sessionlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/jonathanwmaddison/jonabot/datatypes"
)

// BadgerConfig holds configuration for the embedded Badger store.
type BadgerConfig struct {
	// Path is the directory for database files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives Badger's internal log output.
	// If nil, Badger's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for a persistent store.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryBadgerConfig returns configuration for tests: no disk I/O and no
// sync overhead. Data is lost on Close.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is an embedded append-only conversation log.
//
// # Description
//
// The local fallback sink, used when no Supabase URL is configured
// (lightweight mode). Key layout:
//
//	session/<id>                  -> datatypes.Session JSON
//	msg/<session-id>/<ts>-<uuid>  -> datatypes.LogRecord JSON
//
// The timestamp segment is zero-padded unix nanos so a key-ordered scan of
// a msg/<session-id>/ prefix replays the conversation in order.
//
// Thread Safety: Safe for concurrent use; Badger transactions provide
// isolation.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (and if needed creates) a store with the given
// configuration.
//
// # Inputs
//
//   - cfg: Store configuration. Path is required unless InMemory is true.
//
// # Outputs
//
//   - *BadgerStore: The opened store. Caller must call Close when done.
//   - error: Non-nil if the path is invalid or the database cannot open.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func sessionKey(id string) []byte {
	return []byte("session/" + id)
}

func messageKey(sessionID string, ts time.Time) []byte {
	return []byte(fmt.Sprintf("msg/%s/%020d-%s", sessionID, ts.UnixNano(), uuid.NewString()))
}

// InsertSession implements the Store interface.
func (b *BadgerStore) InsertSession(ctx context.Context, id string,
	origin datatypes.ChatOrigin, metadata map[string]any) (datatypes.Session, error) {

	if err := ctx.Err(); err != nil {
		return datatypes.Session{}, fmt.Errorf("context cancelled: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	session := datatypes.Session{
		SessionID:  id,
		StartedAt:  time.Now().UTC(),
		ChatOrigin: origin,
		Metadata:   metadata,
	}

	value, err := json.Marshal(session)
	if err != nil {
		return datatypes.Session{}, fmt.Errorf("marshal session %s: %w", id, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(id), value)
	})
	if err != nil {
		return datatypes.Session{}, fmt.Errorf("write session %s: %w", id, err)
	}
	return session, nil
}

// InsertMessage implements the Store interface.
func (b *BadgerStore) InsertMessage(ctx context.Context, rec datatypes.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal message for session %s: %w", rec.SessionID, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(rec.SessionID, rec.Timestamp), value)
	})
	if err != nil {
		return fmt.Errorf("write message for session %s: %w", rec.SessionID, err)
	}
	return nil
}

// EndSession implements the Store interface.
func (b *BadgerStore) EndSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var session datatypes.Session
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		}); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}

		now := time.Now().UTC()
		session.EndedAt = &now
		value, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return txn.Set(sessionKey(sessionID), value)
	})
	if err != nil {
		return fmt.Errorf("end session %s: %w", sessionID, err)
	}
	return nil
}

// GetSession reads a session row back. Used by tests and local tooling;
// nothing on the request path depends on reads.
func (b *BadgerStore) GetSession(ctx context.Context, sessionID string) (datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Session{}, fmt.Errorf("context cancelled: %w", err)
	}

	var session datatypes.Session
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		return datatypes.Session{}, err
	}
	return session, nil
}

// ListMessages returns the messages of a session in chronological order.
func (b *BadgerStore) ListMessages(ctx context.Context, sessionID string) ([]datatypes.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	prefix := []byte("msg/" + sessionID + "/")
	var records []datatypes.LogRecord
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec datatypes.LogRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages for session %s: %w", sessionID, err)
	}
	return records, nil
}

// Close implements the Store interface.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
