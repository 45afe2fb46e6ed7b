package domain

import "fmt"

// Default chunking parameters, matching the embedding model's sweet spot.
const (
	DefaultChunkSizeTokens = 300
	DefaultOverlapTokens   = 50
)

// ChunkingConfig controls how extracted text is split into passages.
type ChunkingConfig struct {
	// ChunkSizeTokens is the window size in tokens.
	ChunkSizeTokens int

	// OverlapTokens is how many tokens consecutive passages share.
	OverlapTokens int
}

// DefaultChunkingConfig returns the default window configuration.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSizeTokens: DefaultChunkSizeTokens,
		OverlapTokens:   DefaultOverlapTokens,
	}
}

// Validate rejects configurations that would lose data or never
// terminate. Overlap >= chunk size would stall the window.
func (c ChunkingConfig) Validate() error {
	if c.ChunkSizeTokens <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d",
			ErrConfiguration, c.ChunkSizeTokens)
	}
	if c.OverlapTokens < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d",
			ErrConfiguration, c.OverlapTokens)
	}
	if c.OverlapTokens >= c.ChunkSizeTokens {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			ErrConfiguration, c.OverlapTokens, c.ChunkSizeTokens)
	}
	return nil
}

// Stride is how far the window advances per passage.
func (c ChunkingConfig) Stride() int {
	return c.ChunkSizeTokens - c.OverlapTokens
}

// Page is one unit of extracted text, in physical page order.
type Page struct {
	// Number is the 1-based physical page number.
	Number int

	// Text is the extracted page text.
	Text string
}
