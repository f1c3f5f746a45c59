// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the JonaBot chat backend.
//
// This file contains the request types for the streaming chat endpoints.
// For session and conversation-log types, see session.go.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	// Checked in bytes, not runes, to bound per-request memory.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on a string field.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Chat Request Types
// =============================================================================

// Message is one turn of a conversation.
//
// # Description
//
// Messages are immutable once sent. List order is conversation chronology;
// role sequencing is the caller's responsibility and is not validated here.
//
// # Fields
//
//   - Role: One of "system", "user", "assistant".
//   - Content: The message text, limited to MaxMessageContentBytes.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required,maxbytes"`
}

// ChatRequest represents the body of a streaming chat request.
//
// # Description
//
// ChatRequest carries the visitor-side conversation history for one chat
// turn. The system prompt is never supplied by the client; the handler
// prepends the origin-specific prompt before calling the upstream
// completion API.
//
// # Validation
//
// Uses go-playground/validator:
//   - UserMessages: required, 1-100 elements, each element validated
//   - Message.Role: one of system/user/assistant
//   - Message.Content: required, max 32768 bytes
//
// # Examples
//
//	req := ChatRequest{
//	    UserMessages: []Message{{Role: "user", Content: "Hi"}},
//	}
//
// # Assumptions
//
//   - Messages are in chronological order (oldest first).
type ChatRequest struct {
	UserMessages []Message `json:"userMessages" validate:"required,min=1,max=100,dive"`
}

// Validate validates the ChatRequest fields.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}
