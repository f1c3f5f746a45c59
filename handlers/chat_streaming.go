// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the JonaBot backend:
// the per-origin streaming chat endpoints and their supporting surface
// (contact, feedback, log-conversation, resume, health).
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonathanwmaddison/jonabot/datatypes"
	"github.com/jonathanwmaddison/jonabot/llm"
	"github.com/jonathanwmaddison/jonabot/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var chatTracer = otel.Tracer("jonabot.handlers.chat")

// forwardChunkSize is the read size for the live copy loop. Fragments are
// typically far smaller; the buffer just avoids per-byte reads.
const forwardChunkSize = 4096

// ChatStreamConfig parameterizes one branded chat endpoint.
//
// All four chat routes share HandleChatStream; only the origin, metrics
// label, and system prompt differ.
type ChatStreamConfig struct {
	Origin   datatypes.ChatOrigin
	Endpoint observability.Endpoint

	// SystemPrompt is called per request so prompt content can change
	// without restarting.
	SystemPrompt func() string

	Params llm.GenerationParams
}

// ChatHandler serves the streaming chat endpoints.
//
// # Description
//
// The pipeline per request:
//
//	validate -> resolve session -> open upstream stream -> tee -> copy to client
//
// The response body is the raw de-framed assistant text: SSE framing is
// consumed server-side and never reaches the browser. Conversation logging
// rides the tee and can neither delay nor fail the live copy.
type ChatHandler struct {
	client   llm.StreamClient
	resolver *SessionResolver
	tee      *StreamTee

	// refreshCookies re-issues the session cookie on every request
	// (sliding expiration). Off by default: the cookie lifetime anchors
	// to first contact.
	refreshCookies bool
}

// NewChatHandler wires a handler from its collaborators.
func NewChatHandler(client llm.StreamClient, resolver *SessionResolver,
	tee *StreamTee, refreshCookies bool) *ChatHandler {
	if client == nil {
		panic("llm client must not be nil")
	}
	if resolver == nil {
		panic("session resolver must not be nil")
	}
	if tee == nil {
		panic("stream tee must not be nil")
	}
	return &ChatHandler{
		client:         client,
		resolver:       resolver,
		tee:            tee,
		refreshCookies: refreshCookies,
	}
}

// HandleChatStream returns the gin handler for one chat origin.
//
// # Description
//
// Request contract:
//   - POST with Content-Type application/json, body {"userMessages": [...]}.
//   - 415 if the content type is not JSON.
//   - 400 if userMessages is missing, not an array, or fails validation.
//   - 500 JSON {error, message} for session-creation and upstream failures.
//   - 200 with Content-Type text/event-stream and the raw reply text
//     otherwise; Set-Cookie session_id=... exactly when the session is new.
//
// Errors after the first byte has been written cannot change the status;
// they terminate the body and are recorded in logs and metrics.
func (h *ChatHandler) HandleChatStream(cfg ChatStreamConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, span := chatTracer.Start(c.Request.Context(), "ChatHandler.HandleChatStream")
		defer span.End()
		span.SetAttributes(attribute.String("chat.origin", string(cfg.Origin)))

		metrics := observability.DefaultMetrics
		success := false
		if metrics != nil {
			metrics.StreamStarted(cfg.Endpoint)
			defer func() {
				metrics.StreamEnded(cfg.Endpoint)
				metrics.RecordRequest(cfg.Endpoint, success)
				metrics.RecordStreamDuration(cfg.Endpoint, time.Since(startTime).Seconds(), success)
			}()
		}

		// Step 1: reject non-JSON bodies before reading them.
		if !strings.Contains(c.ContentType(), "application/json") {
			span.SetStatus(codes.Error, "unsupported media type")
			if metrics != nil {
				metrics.RecordError(cfg.Endpoint, observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "Content-Type must be application/json",
			})
			return
		}

		// Step 2: decode and validate.
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.SetStatus(codes.Error, "bad request body")
			if metrics != nil {
				metrics.RecordError(cfg.Endpoint, observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: userMessages must be an array of messages",
			})
			return
		}
		if err := req.Validate(); err != nil {
			span.SetStatus(codes.Error, "validation failed")
			if metrics != nil {
				metrics.RecordError(cfg.Endpoint, observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request: " + err.Error(),
			})
			return
		}

		// Step 3: resolve session identity. The only awaited sink write.
		cookieValue, _ := c.Cookie(SessionCookieName)
		resolution, err := h.resolver.Resolve(ctx, "", cookieValue, cfg.Origin, requestMetadata(c))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session resolution failed")
			if metrics != nil {
				metrics.RecordError(cfg.Endpoint, observability.ErrorCodeSession)
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": err.Error(),
			})
			return
		}
		span.SetAttributes(attribute.String("chat.session_id", resolution.SessionID))

		// Step 4: open the upstream stream. Fails fast before any byte is
		// committed to the client.
		messages := make([]datatypes.Message, 0, len(req.UserMessages)+1)
		messages = append(messages, datatypes.Message{
			Role:    "system",
			Content: cfg.SystemPrompt(),
		})
		messages = append(messages, req.UserMessages...)

		stream, err := h.client.ChatStream(ctx, messages, cfg.Params)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upstream open failed")
			if metrics != nil {
				metrics.RecordError(cfg.Endpoint, observability.ErrorCodeUpstream)
			}
			slog.Error("Failed to open completion stream",
				"error", err,
				"sessionId", resolution.SessionID,
				"origin", cfg.Origin)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": "failed to reach the chat completion service",
			})
			return
		}

		// Step 5: fork through the tee. From here the tee owns the upstream
		// stream and all logging.
		live := h.tee.Tee(stream, TeeConfig{
			SessionID:    resolution.SessionID,
			Origin:       cfg.Origin,
			UserMessages: req.UserMessages,
			StartTime:    startTime,
			Metadata:     map[string]any{"endpoint": string(cfg.Endpoint)},
		})

		// Step 6: commit the response. Header changes are impossible past
		// this point.
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		if resolution.IsNew || h.refreshCookies {
			setSessionCookie(c, resolution.SessionID)
		}
		c.Status(http.StatusOK)

		// Step 7: copy the live stream to the client, flushing per chunk.
		success = h.copyToClient(c, live, cfg, resolution.SessionID, startTime)
		if success {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// copyToClient pumps the live reader into the response writer. Returns true
// when the stream reached a clean EOF and every byte was delivered.
func (h *ChatHandler) copyToClient(c *gin.Context, live io.ReadCloser,
	cfg ChatStreamConfig, sessionID string, startTime time.Time) bool {

	defer live.Close()
	metrics := observability.DefaultMetrics
	flusher, _ := c.Writer.(http.Flusher)

	buf := make([]byte, forwardChunkSize)
	firstByte := true
	for {
		n, readErr := live.Read(buf)
		if n > 0 {
			if firstByte {
				firstByte = false
				if metrics != nil {
					metrics.RecordTimeToFirstToken(cfg.Endpoint, time.Since(startTime).Seconds())
				}
			}
			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				// Browser went away. The tee notices on its next write and
				// persists the delivered prefix.
				slog.Info("Client disconnected mid-stream",
					"sessionId", sessionID, "origin", cfg.Origin)
				if metrics != nil {
					metrics.RecordClientDisconnect(cfg.Endpoint)
					metrics.RecordError(cfg.Endpoint, observability.ErrorCodeClientDisconnect)
				}
				return false
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return true
		}
		if readErr != nil {
			// Too late for an error status; end the body and account for it.
			code := observability.ErrorCodeUpstream
			if errors.Is(readErr, llm.ErrTruncated) {
				code = observability.ErrorCodeTruncated
			}
			slog.Error("Stream failed mid-delivery",
				"error", readErr,
				"sessionId", sessionID,
				"origin", cfg.Origin)
			if metrics != nil {
				metrics.RecordError(cfg.Endpoint, code)
			}
			return false
		}
	}
}
