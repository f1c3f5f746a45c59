// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jonathanwmaddison/jonabot/background"
	"github.com/jonathanwmaddison/jonabot/datatypes"
	"github.com/jonathanwmaddison/jonabot/llm"
	"github.com/jonathanwmaddison/jonabot/observability"
	"github.com/jonathanwmaddison/jonabot/sessionlog"
)

// persistTimeout bounds each post-response sink write. Generous because the
// write races nothing; it only has to finish before shutdown drain.
const persistTimeout = 30 * time.Second

// =============================================================================
// Streaming Tee
// =============================================================================

// TeeConfig describes one teed exchange.
type TeeConfig struct {
	SessionID    string
	Origin       datatypes.ChatOrigin
	UserMessages []datatypes.Message
	StartTime    time.Time
	Metadata     map[string]any
}

// StreamTee forks an upstream token stream into live delivery and
// conversation logging.
//
// # Description
//
// Tee returns a reader producing exactly the bytes of the source fragments,
// in order, with no buffering beyond the in-flight fragment: each fragment
// is handed to the consumer the moment it arrives, and the only extra work
// on that path is an in-memory append to the transcript accumulator.
//
// Logging side effects:
//   - The user messages are persisted fire-and-forget when the tee starts.
//   - The accumulated assistant reply is persisted after the source ends,
//     on a detached context, so delivery of the final bytes never waits on
//     the sink.
//   - Sink failures are logged, counted, and swallowed. They are invisible
//     to the reader.
//
// Error flow: a source error (including llm.ErrTruncated) propagates to the
// reader after all preceding fragments; the partial transcript is still
// persisted. Closing the returned reader (client abort) stops forwarding
// and persists the prefix buffered so far.
//
// Thread Safety: Safe for concurrent use; every Tee call is independent.
type StreamTee struct {
	store sessionlog.Store
	tasks *background.Registry
}

// NewStreamTee creates a tee writing to the given sink, running its
// post-response writes on the registry.
func NewStreamTee(store sessionlog.Store, tasks *background.Registry) *StreamTee {
	if store == nil {
		panic("sessionlog store must not be nil")
	}
	if tasks == nil {
		panic("background registry must not be nil")
	}
	return &StreamTee{store: store, tasks: tasks}
}

// Tee starts forwarding src and returns the live reader.
//
// The tee owns src and closes it when forwarding stops. The caller owns the
// returned reader and should close it if it stops consuming early.
func (t *StreamTee) Tee(src llm.TokenStream, cfg TeeConfig) io.ReadCloser {
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	pr, pw := io.Pipe()

	// Step 1: log the user turns without waiting for anything.
	t.tasks.Go("persist_user_messages", func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		for _, msg := range cfg.UserMessages {
			if msg.Role != "user" {
				continue
			}
			rec := datatypes.LogRecord{
				SessionID:  cfg.SessionID,
				Role:       msg.Role,
				Message:    msg.Content,
				ChatOrigin: cfg.Origin,
				Timestamp:  time.Now().UTC(),
			}
			if err := t.store.InsertMessage(ctx, rec); err != nil {
				slog.Error("Failed to log user message",
					"error", err, "sessionId", cfg.SessionID)
				if m := observability.DefaultMetrics; m != nil {
					m.RecordLoggingFailure("insert_message")
				}
			}
		}
	})

	// Step 2: forward fragments until the source or the consumer quits.
	go t.forward(src, pw, cfg)

	return pr
}

// forward pumps src into pw, accumulating the transcript, then schedules
// the assistant-message persist.
func (t *StreamTee) forward(src llm.TokenStream, pw *io.PipeWriter, cfg TeeConfig) {
	var (
		transcript strings.Builder
		srcErr     error
		aborted    bool
	)

	for {
		fragment, err := src.Recv()
		if fragment != "" {
			transcript.WriteString(fragment)
			if _, werr := pw.Write([]byte(fragment)); werr != nil {
				// Consumer closed the read side; keep the prefix for logging.
				aborted = true
				break
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			srcErr = err
			break
		}
	}
	if err := src.Close(); err != nil {
		slog.Warn("Failed to close upstream token stream",
			"error", err, "sessionId", cfg.SessionID)
	}

	// The live side must settle before any persistence work: the reader
	// sees EOF or the source error now, regardless of what the sink does.
	if srcErr != nil {
		pw.CloseWithError(srcErr)
	} else {
		pw.Close()
	}

	text := transcript.String()
	duration := time.Since(cfg.StartTime)
	t.tasks.Go("persist_assistant_message", func(ctx context.Context) {
		t.persistAssistant(ctx, cfg, text, duration, srcErr, aborted)
	})
}

// persistAssistant writes the accumulated reply on a detached context.
func (t *StreamTee) persistAssistant(ctx context.Context, cfg TeeConfig,
	text string, duration time.Duration, srcErr error, aborted bool) {

	if text == "" && srcErr != nil {
		// Nothing arrived before the failure; no transcript to keep.
		return
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	metadata := map[string]any{
		"duration_ms": duration.Milliseconds(),
	}
	for k, v := range cfg.Metadata {
		metadata[k] = v
	}
	if srcErr != nil {
		metadata["truncated"] = true
	}
	if aborted {
		metadata["client_aborted"] = true
	}

	rec := datatypes.LogRecord{
		SessionID:  cfg.SessionID,
		Role:       "assistant",
		Message:    text,
		ChatOrigin: cfg.Origin,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
	}
	if err := t.store.InsertMessage(ctx, rec); err != nil {
		slog.Error("Failed to log assistant message",
			"error", err,
			"sessionId", cfg.SessionID,
			"chars", len(text))
		if m := observability.DefaultMetrics; m != nil {
			m.RecordLoggingFailure("insert_message")
		}
		return
	}
	slog.Debug("Logged assistant message",
		"sessionId", cfg.SessionID,
		"chars", len(text),
		"duration", duration)
}
