package ollama

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
	return NewLLMService(Config{BaseURL: srv.URL})
}

func TestGenerateStream_NDJSON(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		fmt.Fprintln(w, `{"message":{"content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	})

	ch, err := s.GenerateStream(context.Background(), []domain.ChatMessage{
		{Role: "user", Content: "hi"},
	}, driven.GenerateOptions{})
	require.NoError(t, err)

	var text strings.Builder
	var last driven.StreamDelta
	for d := range ch {
		last = d
		text.WriteString(d.Text)
	}
	assert.Equal(t, "Hello", text.String())
	assert.True(t, last.Done)
}

func TestGenerateStream_ErrorLine(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not loaded"}`)
	})

	ch, err := s.GenerateStream(context.Background(), []domain.ChatMessage{
		{Role: "user", Content: "hi"},
	}, driven.GenerateOptions{})
	require.NoError(t, err)

	var last driven.StreamDelta
	for d := range ch {
		last = d
	}
	assert.ErrorIs(t, last.Err, domain.ErrGeneration)
}
