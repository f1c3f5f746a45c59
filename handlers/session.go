// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonathanwmaddison/jonabot/datatypes"
	"github.com/jonathanwmaddison/jonabot/observability"
	"github.com/jonathanwmaddison/jonabot/sessionlog"
)

// =============================================================================
// Session Identity
// =============================================================================

const (
	// SessionCookieName is the browser cookie carrying the session id.
	SessionCookieName = "session_id"

	// SessionCookieMaxAge is 30 days, matching the analytics retention
	// window.
	SessionCookieMaxAge = 30 * 24 * 60 * 60
)

// ErrSessionCreation is returned when a new session could not be registered
// with the persistence sink. Unlike message logging, this failure is fatal:
// without a session id every later record would be orphaned.
var ErrSessionCreation = errors.New("session creation failed")

// SessionResolution is the outcome of resolving session identity for one
// request.
type SessionResolution struct {
	SessionID string
	// IsNew is true only when this request created the session; it drives
	// the single Set-Cookie on the response.
	IsNew bool
}

// SessionResolver determines which conversation session a request belongs to.
//
// # Description
//
// Resolution precedence:
//  1. An explicit id hint from the caller (the log-conversation flow where
//     the client generated its own id).
//  2. The session_id cookie.
//  3. Create: one awaited sink write registering a fresh UUID session.
//
// Creation is the only sink write on the request path that the caller waits
// for. It happens at most once per request; a returning cookie holder never
// touches the sink here.
//
// Thread Safety: Safe for concurrent use.
type SessionResolver struct {
	store sessionlog.Store
}

// NewSessionResolver creates a resolver backed by the given sink.
func NewSessionResolver(store sessionlog.Store) *SessionResolver {
	if store == nil {
		panic("sessionlog store must not be nil")
	}
	return &SessionResolver{store: store}
}

// Resolve returns the session identity for a request.
//
// # Inputs
//
//   - ctx: Request context; bounds the session-creation write.
//   - hint: Explicit session id from the request body, or "".
//   - cookieValue: Value of the session_id cookie, or "".
//   - origin: Chat origin recorded on a newly created session.
//   - metadata: Context stored with a new session (client IP, user agent).
//
// # Outputs
//
//   - SessionResolution: The resolved id and whether it was just created.
//   - error: Wraps ErrSessionCreation if the sink write failed.
func (r *SessionResolver) Resolve(ctx context.Context, hint, cookieValue string,
	origin datatypes.ChatOrigin, metadata map[string]any) (SessionResolution, error) {

	if hint != "" {
		return SessionResolution{SessionID: hint}, nil
	}
	if cookieValue != "" {
		return SessionResolution{SessionID: cookieValue}, nil
	}

	session, err := r.store.InsertSession(ctx, "", origin, metadata)
	if err != nil {
		slog.Error("Failed to create session", "error", err, "origin", origin)
		return SessionResolution{}, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	slog.Info("Created new chat session",
		"sessionId", session.SessionID, "origin", origin)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSessionCreated(string(origin))
	}
	return SessionResolution{SessionID: session.SessionID, IsNew: true}, nil
}

// setSessionCookie attaches the session cookie to the response.
//
// Attributes are fixed: HttpOnly and Secure, SameSite=Strict, Path=/,
// 30-day Max-Age.
func setSessionCookie(c *gin.Context, sessionID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   SessionCookieMaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// requestMetadata collects the client context stored on new sessions.
func requestMetadata(c *gin.Context) map[string]any {
	md := map[string]any{
		"ip": c.ClientIP(),
	}
	if ua := c.Request.UserAgent(); ua != "" {
		md["user_agent"] = ua
	}
	if ref := c.Request.Referer(); ref != "" {
		md["referrer"] = ref
	}
	return md
}
