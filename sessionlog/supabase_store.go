// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sessionlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathanwmaddison/jonabot/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var supabaseTracer = otel.Tracer("jonabot.sessionlog.supabase")

const (
	sessionsTable = "conversation_sessions"
	messagesTable = "conversation_messages"

	// serviceKeySecretPath is checked when SUPABASE_SERVICE_ROLE_KEY is
	// unset, for container deployments that mount secrets as files.
	serviceKeySecretPath = "/run/secrets/supabase_service_role_key"
)

// SupabaseStore writes sessions and messages through PostgREST.
//
// # Description
//
// Each write is a single HTTP insert into conversation_sessions or
// conversation_messages using the service-role key. The store performs no
// reads: session existence is guaranteed by the resolver's write-once flow,
// and the analytics tables are consumed out of band.
//
// Thread Safety: Safe for concurrent use; state is immutable after New.
type SupabaseStore struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
}

// NewSupabaseStore builds a store for the given project URL and key.
func NewSupabaseStore(baseURL, serviceKey string) *SupabaseStore {
	return &SupabaseStore{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceKey: serviceKey,
	}
}

// NewSupabaseStoreFromEnv builds a store from SUPABASE_URL and
// SUPABASE_SERVICE_ROLE_KEY (with a secret-file fallback for the key).
//
// # Outputs
//
//   - *SupabaseStore: Ready-to-use store.
//   - error: Non-nil if either setting is missing.
func NewSupabaseStoreFromEnv() (*SupabaseStore, error) {
	baseURL := os.Getenv("SUPABASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL environment variable not set")
	}

	key := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if key == "" {
		if data, err := os.ReadFile(serviceKeySecretPath); err == nil {
			key = strings.TrimSpace(string(data))
		}
	}
	if key == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY not set and %s not readable", serviceKeySecretPath)
	}

	slog.Info("Initializing Supabase session store", "base_url", baseURL)
	return NewSupabaseStore(baseURL, key), nil
}

// InsertSession implements the Store interface.
func (s *SupabaseStore) InsertSession(ctx context.Context, id string,
	origin datatypes.ChatOrigin, metadata map[string]any) (datatypes.Session, error) {

	ctx, span := supabaseTracer.Start(ctx, "SupabaseStore.InsertSession")
	defer span.End()

	if id == "" {
		id = uuid.NewString()
	}
	session := datatypes.Session{
		SessionID:  id,
		StartedAt:  time.Now().UTC(),
		ChatOrigin: origin,
		Metadata:   metadata,
	}
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.String("session.origin", string(origin)),
	)

	if err := s.insert(ctx, sessionsTable, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return datatypes.Session{}, fmt.Errorf("insert session %s: %w", id, err)
	}
	return session, nil
}

// InsertMessage implements the Store interface.
func (s *SupabaseStore) InsertMessage(ctx context.Context, rec datatypes.LogRecord) error {
	ctx, span := supabaseTracer.Start(ctx, "SupabaseStore.InsertMessage")
	defer span.End()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	span.SetAttributes(
		attribute.String("session.id", rec.SessionID),
		attribute.String("message.role", rec.Role),
	)

	if err := s.insert(ctx, messagesTable, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return fmt.Errorf("insert message for session %s: %w", rec.SessionID, err)
	}
	return nil
}

// EndSession implements the Store interface.
//
// PostgREST PATCH with an eq filter; a response with no affected rows is
// reported as ErrSessionNotFound.
func (s *SupabaseStore) EndSession(ctx context.Context, sessionID string) error {
	ctx, span := supabaseTracer.Start(ctx, "SupabaseStore.EndSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	payload, err := json.Marshal(map[string]any{
		"ended_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal end-session payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?session_id=eq.%s",
		s.baseURL, sessionsTable, url.QueryEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build end-session request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("end session %s: %w", sessionID, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, "non-2xx")
		return fmt.Errorf("end session %s: status %d: %s",
			sessionID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if strings.TrimSpace(string(body)) == "[]" {
		return fmt.Errorf("end session %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// Close implements the Store interface. Nothing to release.
func (s *SupabaseStore) Close() error { return nil }

// insert POSTs one row into a PostgREST table.
func (s *SupabaseStore) insert(ctx context.Context, table string, row any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal %s row: %w", table, err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s insert: %w", table, err)
	}
	s.setHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("postgrest %s insert: status %d: %s",
			table, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *SupabaseStore) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
}
