package driven

import (
	"context"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

// StreamDelta is one fragment of a streamed generation.
type StreamDelta struct {
	// Text is the fragment content. Empty on the terminal delta.
	Text string

	// Done marks the end of the stream.
	Done bool

	// Err is set when the stream terminated abnormally. Deltas already
	// delivered remain valid.
	Err error
}

// LLMService drives the text-generation collaborator.
//
// Implementations may include:
//   - OpenAI (GPT-4o family)
//   - Anthropic (Claude)
//   - Ollama-compatible local servers
type LLMService interface {
	// GenerateStream starts a streaming completion for the prompt
	// messages. Deltas are sent on the returned channel as the model
	// produces them; exactly one terminal delta (Done or Err) is sent
	// and then the channel is closed. Cancelling ctx aborts the
	// upstream request, not just the forwarding.
	GenerateStream(ctx context.Context, messages []domain.ChatMessage, opts GenerateOptions) (<-chan StreamDelta, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
