// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Doubles
// =============================================================================

type recordingMailer struct {
	mu   sync.Mutex
	sent []ContactMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg ContactMessage) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

type stubLimiter struct{ allow bool }

func (l stubLimiter) Allow(string) bool { return l.allow }

func newContactRouter(limiterAllow bool, mailer Mailer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/contact", HandleContact(stubLimiter{allow: limiterAllow}, mailer))
	return router
}

func postContact(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HandleContact Tests
// =============================================================================

// TestHandleContact_Success verifies a valid submission reaches the mailer.
func TestHandleContact_Success(t *testing.T) {
	mailer := &recordingMailer{}
	router := newContactRouter(true, mailer)

	w := postContact(router, `{"name":"Ada","email":"ada@example.com","message":"I would like to talk about a role."}`)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ada@example.com", mailer.sent[0].Email)
}

// TestHandleContact_ValidationFailures covers the rejection matrix.
func TestHandleContact_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"message":"a long enough message here"}`},
		{"missing message", `{"email":"ada@example.com"}`},
		{"bad email format", `{"email":"not-an-email","message":"a long enough message here"}`},
		{"message too short", `{"email":"ada@example.com","message":"short"}`},
		{"message too long", `{"email":"ada@example.com","message":"` + strings.Repeat("a", MaxContactMessageLen+1) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &recordingMailer{}
			w := postContact(newContactRouter(true, mailer), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, mailer.sent)
		})
	}
}

// TestHandleContact_RateLimited verifies 429 when the limiter denies, with
// no mail dispatched.
func TestHandleContact_RateLimited(t *testing.T) {
	mailer := &recordingMailer{}
	router := newContactRouter(false, mailer)

	w := postContact(router, `{"email":"ada@example.com","message":"a long enough message here"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, mailer.sent)
}

// TestHandleContact_MailerFailure verifies a 500 when sending fails.
func TestHandleContact_MailerFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp refused")}
	router := newContactRouter(true, mailer)

	w := postContact(router, `{"email":"ada@example.com","message":"a long enough message here"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
