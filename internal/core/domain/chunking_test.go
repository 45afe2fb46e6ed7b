package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkingConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultChunkingConfig().Validate())

	tests := []struct {
		name string
		cfg  ChunkingConfig
	}{
		{"zero chunk size", ChunkingConfig{ChunkSizeTokens: 0, OverlapTokens: 0}},
		{"negative overlap", ChunkingConfig{ChunkSizeTokens: 100, OverlapTokens: -1}},
		{"overlap equals chunk size", ChunkingConfig{ChunkSizeTokens: 100, OverlapTokens: 100}},
		{"overlap exceeds chunk size", ChunkingConfig{ChunkSizeTokens: 100, OverlapTokens: 150}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrConfiguration)
		})
	}
}

func TestChunkingConfigStride(t *testing.T) {
	cfg := ChunkingConfig{ChunkSizeTokens: 300, OverlapTokens: 50}
	assert.Equal(t, 250, cfg.Stride())
}
