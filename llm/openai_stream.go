package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jonathanwmaddison/jonabot/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("jonabot.llm.openai")

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4"

	// apiKeySecretPath is checked when OPENAI_API_KEY is unset, for
	// container deployments that mount secrets as files.
	apiKeySecretPath = "/run/secrets/openai_api_key"
)

// OpenAIClient streams chat completions from an OpenAI-compatible API.
//
// # Description
//
// The client speaks the raw SSE wire protocol rather than an SDK: the tee
// needs frame-level control (the [DONE] sentinel, malformed-frame failures,
// truncation detection) that SDK abstractions hide. The parsed fragments
// are exactly the choices[0].delta.content strings, in arrival order.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// openai chat completions request body
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []datatypes.Message `json:"messages"`
	Stream      bool                `json:"stream"`
	Temperature *float32            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
}

// one SSE data frame of a streamed completion
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAIClient builds a client from the environment.
//
// # Description
//
// Reads OPENAI_API_KEY (falling back to /run/secrets/openai_api_key),
// OPENAI_BASE_URL (default https://api.openai.com/v1) and OPENAI_MODEL
// (default gpt-4).
//
// # Outputs
//
//   - *OpenAIClient: Ready-to-use client.
//   - error: Non-nil if no API key could be found.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		if data, err := os.ReadFile(apiKeySecretPath); err == nil {
			apiKey = strings.TrimSpace(string(data))
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set and %s not readable", apiKeySecretPath)
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}

	slog.Info("Initializing OpenAI client", "base_url", baseURL, "default_model", model)
	return &OpenAIClient{
		// No client-level timeout: completions can legitimately stream for
		// minutes. Cancellation comes from the request context.
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}, nil
}

// NewOpenAIClientWith builds a client with explicit settings, for tests and
// alternative wiring.
func NewOpenAIClientWith(httpClient *http.Client, baseURL, apiKey, model string) *OpenAIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

// ChatStream implements the StreamClient interface.
//
// # Description
//
// Opens a streaming chat completion. The call fails fast: if the upstream
// responds with anything other than 2xx, the body is read for diagnostics
// and an error is returned before any fragment is produced. On success the
// returned TokenStream owns the response body.
func (o *OpenAIClient) ChatStream(ctx context.Context, messages []datatypes.Message,
	params GenerationParams) (TokenStream, error) {

	ctx, span := tracer.Start(ctx, "OpenAIClient.ChatStream")
	defer span.End()

	model := params.Model
	if model == "" {
		model = o.model
	}
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.message_count", len(messages)),
	)

	body := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Stream:      true,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Stop:        params.Stop,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal failed")
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request build failed")
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream call failed")
		return nil, fmt.Errorf("completion API call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a bounded slice of the error body for the log line.
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		span.SetStatus(codes.Error, "upstream non-2xx")
		slog.Error("Completion API returned error status",
			"status", resp.StatusCode,
			"body", string(errBody),
			"elapsed", time.Since(start))
		return nil, fmt.Errorf("completion API returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	slog.Debug("Completion stream opened",
		"model", model, "ttfb", time.Since(start))

	return &sseTokenStream{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

// =============================================================================
// SSE Token Stream
// =============================================================================

// sseTokenStream parses the SSE framing of a streamed chat completion.
//
// Frames arrive as "data: <json>" lines separated by blank lines. The
// terminal frame is the literal "data: [DONE]". Lines that are not data
// lines (comments, event names, blanks) are skipped.
type sseTokenStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
	closed  bool
}

// Recv returns the next non-empty content fragment.
//
// # Outputs
//
//   - string: The fragment, "" when err is non-nil.
//   - error: io.EOF after [DONE]; ErrTruncated if the connection ended
//     without [DONE]; a wrapped parse error on a malformed data frame
//     (fatal, no resynchronization is attempted).
func (s *sseTokenStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.done = true
			return "", fmt.Errorf("malformed stream frame: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
		// Role-only or finish_reason-only frames carry no text.
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("reading completion stream: %w", err)
	}
	// Clean TCP close without [DONE]: the reply is cut short.
	return "", ErrTruncated
}

// Close releases the upstream connection.
func (s *sseTokenStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
