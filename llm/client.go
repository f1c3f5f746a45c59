package llm

import (
	"context"
	"errors"

	"github.com/jonathanwmaddison/jonabot/datatypes"
)

// ErrTruncated is returned by TokenStream.Recv when the upstream closed the
// connection before sending the [DONE] sentinel. The tokens received before
// the cut are valid; the reply is incomplete.
var ErrTruncated = errors.New("upstream stream truncated before completion")

// GenerationParams tunes a single completion call. Nil fields fall back to
// the upstream defaults.
type GenerationParams struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// TokenStream yields text fragments from an in-flight completion.
//
// Recv returns one fragment per call, in upstream order. It returns io.EOF
// after the upstream signals clean completion, ErrTruncated if the stream
// ended without that signal, and any other error as fatal. Close releases
// the underlying connection and is safe to call at any point.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// StreamClient defines the interface for any streaming chat-completion backend.
type StreamClient interface {
	// ChatStream opens a streaming completion for the given messages. It
	// fails before returning a stream if the upstream responds non-2xx.
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams) (TokenStream, error)
}
