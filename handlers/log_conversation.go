// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonathanwmaddison/jonabot/datatypes"
	"github.com/jonathanwmaddison/jonabot/sessionlog"
)

// LogConversationRequest is the body of the client-driven logging endpoint.
//
// Two modes share the route: create_session registers a client-generated
// session id (mobile and embedded widgets that cannot rely on cookies),
// otherwise the request appends one message to an existing session.
type LogConversationRequest struct {
	CreateSession bool                 `json:"create_session"`
	SessionID     string               `json:"session_id"`
	Role          string               `json:"role"`
	Message       string               `json:"message"`
	ChatOrigin    datatypes.ChatOrigin `json:"chat_origin"`
	Metadata      map[string]any       `json:"metadata"`
}

// HandleLogConversation returns the handler for POST /api/log-conversation.
//
// # Description
//
// Unlike the streaming tee, these writes are awaited: the caller chose to
// log explicitly and gets the real outcome.
//
// Responses:
//   - 400 when session_id is missing, or role/message/chat_origin are
//     missing in message mode.
//   - 500 when the sink write fails.
//   - 200 {success: true, session_id} otherwise.
func HandleLogConversation(store sessionlog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LogConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.SessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return
		}

		if req.CreateSession {
			// The explicit id hint path: the client minted the id, the
			// store just registers it.
			session, err := store.InsertSession(c.Request.Context(),
				req.SessionID, req.ChatOrigin, req.Metadata)
			if err != nil {
				slog.Error("Failed to create session via log-conversation",
					"error", err, "sessionId", req.SessionID)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   "Internal Server Error",
					"message": err.Error(),
				})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"success":    true,
				"session_id": session.SessionID,
			})
			return
		}

		if req.Role == "" || req.Message == "" || req.ChatOrigin == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Missing required fields: role, message, and chat_origin are required for message logging.",
			})
			return
		}

		rec := datatypes.LogRecord{
			SessionID:  req.SessionID,
			Role:       req.Role,
			Message:    req.Message,
			ChatOrigin: req.ChatOrigin,
			Metadata:   req.Metadata,
			Timestamp:  time.Now().UTC(),
		}
		if err := store.InsertMessage(c.Request.Context(), rec); err != nil {
			slog.Error("Failed to log conversation message",
				"error", err, "sessionId", req.SessionID)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// HandleEndSession returns the handler for POST /api/end-session, stamping
// ended_at on a session when the widget signals the conversation is over.
func HandleEndSession(store sessionlog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return
		}
		if err := store.EndSession(c.Request.Context(), req.SessionID); err != nil {
			slog.Error("Failed to end session",
				"error", err, "sessionId", req.SessionID)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Internal Server Error",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
