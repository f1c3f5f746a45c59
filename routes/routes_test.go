// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonathanwmaddison/jonabot/background"
	"github.com/jonathanwmaddison/jonabot/datatypes"
	"github.com/jonathanwmaddison/jonabot/handlers"
	"github.com/jonathanwmaddison/jonabot/llm"
	"github.com/jonathanwmaddison/jonabot/middleware"
	"github.com/jonathanwmaddison/jonabot/sessionlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopStreamClient struct{}

func (noopStreamClient) ChatStream(context.Context, []datatypes.Message,
	llm.GenerationParams) (llm.TokenStream, error) {
	return nil, context.Canceled
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, handlers.ContactMessage) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sessionlog.OpenBadgerStore(sessionlog.InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tasks := background.NewRegistry()
	chat := handlers.NewChatHandler(noopStreamClient{},
		handlers.NewSessionResolver(store),
		handlers.NewStreamTee(store, tasks), false)

	router := gin.New()
	SetupRoutes(router, Deps{
		Chat:    chat,
		Store:   store,
		Limiter: middleware.NewSlidingWindowLimiter(3, time.Hour),
		Mailer:  noopMailer{},
	})
	return router
}

// TestSetupRoutes_SurfaceIsRegistered verifies every route answers
// something other than 404.
func TestSetupRoutes_SurfaceIsRegistered(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/metrics"},
		{http.MethodGet, "/api/resume"},
		{http.MethodPost, "/api/chat"},
		{http.MethodPost, "/api/huggingface-chat"},
		{http.MethodPost, "/api/energyhub-chat"},
		{http.MethodPost, "/api/renew-chat"},
		{http.MethodPost, "/api/log-conversation"},
		{http.MethodPost, "/api/end-session"},
		{http.MethodPost, "/api/contact"},
		{http.MethodPost, "/api/feedback"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.NotEqual(t, http.StatusNotFound, w.Code, "%s %s should be routed", tc.method, tc.path)
	}
}

// TestSetupRoutes_HealthAndResume verifies the two trivial GET endpoints.
func TestSetupRoutes_HealthAndResume(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resume", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Jonathan")
}
