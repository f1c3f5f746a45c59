package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonathanwmaddison/jonabot/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseHandler writes the given SSE lines and optionally the [DONE] sentinel.
func sseHandler(t *testing.T, frames []string, done bool) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body struct {
			Model    string              `json:"model"`
			Messages []datatypes.Message `json:"messages"`
			Stream   bool                `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream, "stream must be requested")
		assert.NotEmpty(t, body.Messages)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
		if done {
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
		}
	}
}

func contentFrame(content string) string {
	return fmt.Sprintf(`{"choices":[{"delta":{"content":%q}}]}`, content)
}

func openStream(t *testing.T, handler http.HandlerFunc) (TokenStream, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewOpenAIClientWith(srv.Client(), srv.URL, "test-key", "test-model")
	stream, err := client.ChatStream(t.Context(),
		[]datatypes.Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	require.NoError(t, err)
	return stream, srv.Close
}

// collect drains a stream until its first error.
func collect(stream TokenStream) (string, error) {
	var out string
	for {
		tok, err := stream.Recv()
		out += tok
		if err != nil {
			return out, err
		}
	}
}

// TestChatStream_DeliversFragmentsInOrder verifies delta extraction and the
// clean [DONE] termination.
func TestChatStream_DeliversFragmentsInOrder(t *testing.T) {
	stream, cleanup := openStream(t, sseHandler(t, []string{
		contentFrame("Hel"),
		contentFrame("lo"),
		contentFrame(" there"),
	}, true))
	defer cleanup()
	defer stream.Close()

	text, err := collect(stream)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "Hello there", text)

	// Recv after EOF stays at EOF.
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

// TestChatStream_SkipsEmptyDeltaFrames verifies role-only and
// finish_reason frames produce no output.
func TestChatStream_SkipsEmptyDeltaFrames(t *testing.T) {
	stream, cleanup := openStream(t, sseHandler(t, []string{
		`{"choices":[{"delta":{"role":"assistant"}}]}`,
		contentFrame("hi"),
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	}, true))
	defer cleanup()
	defer stream.Close()

	text, err := collect(stream)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "hi", text)
}

// TestChatStream_MalformedFrameIsFatal verifies a bad JSON frame ends the
// stream with an error, with no resynchronization.
func TestChatStream_MalformedFrameIsFatal(t *testing.T) {
	stream, cleanup := openStream(t, sseHandler(t, []string{
		contentFrame("ok "),
		`{"choices":[`, // cut mid-frame
		contentFrame("never seen"),
	}, true))
	defer cleanup()
	defer stream.Close()

	text, err := collect(stream)
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
	assert.Contains(t, err.Error(), "malformed stream frame")
	assert.Equal(t, "ok ", text, "fragments before the bad frame still arrive")
}

// TestChatStream_TruncationWithoutDone verifies a connection close without
// the sentinel is reported as ErrTruncated.
func TestChatStream_TruncationWithoutDone(t *testing.T) {
	stream, cleanup := openStream(t, sseHandler(t, []string{
		contentFrame("partial"),
	}, false))
	defer cleanup()
	defer stream.Close()

	text, err := collect(stream)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Equal(t, "partial", text)
}

// TestChatStream_FailsFastOnNon2xx verifies no stream is produced when the
// upstream rejects the request.
func TestChatStream_FailsFastOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClientWith(srv.Client(), srv.URL, "test-key", "test-model")
	stream, err := client.ChatStream(t.Context(),
		[]datatypes.Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	require.Error(t, err)
	assert.Nil(t, stream)
	assert.Contains(t, err.Error(), "401")
}

// TestChatStream_UsesParamModelOverride verifies GenerationParams.Model
// wins over the client default.
func TestChatStream_UsesParamModelOverride(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClientWith(srv.Client(), srv.URL, "test-key", "default-model")
	stream, err := client.ChatStream(t.Context(),
		[]datatypes.Message{{Role: "user", Content: "hi"}},
		GenerationParams{Model: "override-model"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = collect(stream)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "override-model", gotModel)
}
