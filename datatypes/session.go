// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// ChatOrigin identifies which branded chat surface produced a conversation.
type ChatOrigin string

// =============================================================================
// Chat Origins
// =============================================================================

const (
	// OriginGeneralChat is the default portfolio chat widget.
	OriginGeneralChat ChatOrigin = "general-chat"

	// OriginHuggingFace is the Hugging Face demo page variant.
	OriginHuggingFace ChatOrigin = "huggingface"

	// OriginEnergyHub is the EnergyHub project showcase variant.
	OriginEnergyHub ChatOrigin = "energyhub"

	// OriginRenewJob is the renewable-energy job application variant.
	OriginRenewJob ChatOrigin = "renew-job"
)

// Valid reports whether o is a known chat origin.
func (o ChatOrigin) Valid() bool {
	switch o {
	case OriginGeneralChat, OriginHuggingFace, OriginEnergyHub, OriginRenewJob:
		return true
	}
	return false
}

// =============================================================================
// Session and Log Records
// =============================================================================

// Session is one logged conversation, scoped to a browser cookie.
//
// # Description
//
// A session is created once on the first chat request from a browser and
// reused for every subsequent request that presents the same cookie. EndedAt
// stays nil until the client explicitly ends the conversation.
//
// # Fields
//
//   - SessionID: UUID, the cookie value and the foreign key for messages.
//   - StartedAt: Server time when the session row was inserted.
//   - EndedAt: Set by EndSession; nil while the conversation is live.
//   - ChatOrigin: Which branded surface started the session.
//   - Metadata: Free-form context (client IP, user agent, referrer).
type Session struct {
	SessionID  string         `json:"session_id"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	ChatOrigin ChatOrigin     `json:"chat_origin"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LogRecord is one persisted conversation message.
//
// # Description
//
// Written by the streaming tee (fire-and-forget for user turns, after
// stream completion for the assistant turn) and by the log-conversation
// endpoint for client-driven logging. Field names mirror the
// conversation_messages columns so the record marshals directly into a
// PostgREST insert.
type LogRecord struct {
	SessionID  string         `json:"session_id"`
	Role       string         `json:"role"`
	Message    string         `json:"message"`
	ChatOrigin ChatOrigin     `json:"chat_origin"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
