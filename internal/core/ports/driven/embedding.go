package driven

import "context"

// EmbedResult is one embedded text from a batch.
type EmbedResult struct {
	// Vector is the fixed-dimension embedding.
	Vector []float32

	// Truncated reports that the input exceeded the model's limit and
	// was cut deterministically before embedding.
	Truncated bool
}

// EmbeddingService generates vector embeddings from text.
//
// The same text under the same model configuration must always produce
// the same vector; caches and tests rely on that determinism.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Local models via inference servers
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) (EmbedResult, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// Results are returned in input order. Batches are size-bounded by
	// the adapter; texts exceeding the model's input limit are
	// truncated deterministically and flagged, never dropped.
	EmbedBatch(ctx context.Context, texts []string) ([]EmbedResult, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536).
	// This must match the VectorIndexManager configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	// Documents record this; query scopes must agree on it.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
