package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewLLMService(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return s
}

func sseHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
	}
}

func collect(t *testing.T, ch <-chan driven.StreamDelta) (string, driven.StreamDelta) {
	t.Helper()
	var text strings.Builder
	var last driven.StreamDelta
	for d := range ch {
		last = d
		text.WriteString(d.Text)
	}
	return text.String(), last
}

func TestGenerateStream_Fragments(t *testing.T) {
	s := newTestService(t, sseHandler(
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	))

	ch, err := s.GenerateStream(context.Background(), []domain.ChatMessage{
		{Role: "user", Content: "hi"},
	}, driven.GenerateOptions{})
	require.NoError(t, err)

	text, last := collect(t, ch)
	assert.Equal(t, "Hello", text)
	assert.True(t, last.Done)
	assert.NoError(t, last.Err)
}

func TestGenerateStream_DoneSentinel(t *testing.T) {
	s := newTestService(t, sseHandler(
		`{"choices":[{"delta":{"content":"ok"}}]}`,
		`[DONE]`,
	))

	ch, err := s.GenerateStream(context.Background(), []domain.ChatMessage{
		{Role: "user", Content: "hi"},
	}, driven.GenerateOptions{})
	require.NoError(t, err)

	text, last := collect(t, ch)
	assert.Equal(t, "ok", text)
	assert.True(t, last.Done)
}

func TestGenerateStream_HTTPError(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	_, err := s.GenerateStream(context.Background(), []domain.ChatMessage{
		{Role: "user", Content: "hi"},
	}, driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestGenerateStream_AbruptEnd(t *testing.T) {
	s := newTestService(t, sseHandler(
		`{"choices":[{"delta":{"content":"partial"}}]}`,
		// No finish_reason and no [DONE].
	))

	ch, err := s.GenerateStream(context.Background(), []domain.ChatMessage{
		{Role: "user", Content: "hi"},
	}, driven.GenerateOptions{})
	require.NoError(t, err)

	text, last := collect(t, ch)
	assert.Equal(t, "partial", text)
	assert.False(t, last.Done)
	assert.ErrorIs(t, last.Err, domain.ErrGeneration)
}

func TestNewLLMService_RequiresAPIKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
