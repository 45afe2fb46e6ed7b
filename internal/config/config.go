// Package config loads Docsage configuration from a TOML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

// Provider names accepted for embedding and generation backends.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config is the full Docsage configuration.
type Config struct {
	// DataDir is where metadata, objects, and index blobs live.
	// Defaults to ~/.docsage/data.
	DataDir string `toml:"data_dir"`

	Chunking   ChunkingConfig   `toml:"chunking"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Generation GenerationConfig `toml:"generation"`
	Query      QueryConfig      `toml:"query"`
}

// ChunkingConfig mirrors domain.ChunkingConfig in TOML form.
type ChunkingConfig struct {
	ChunkSizeTokens int `toml:"chunk_size_tokens"`
	OverlapTokens   int `toml:"overlap_tokens"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `toml:"provider"`

	// Model overrides the provider's default embedding model.
	Model string `toml:"model"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey is usually supplied via OPENAI_API_KEY instead.
	APIKey string `toml:"api_key"`

	// MaxInputChars bounds passage text sent for embedding.
	MaxInputChars int `toml:"max_input_chars"`
}

// GenerationConfig selects and configures the generation backend.
type GenerationConfig struct {
	// Provider is "openai", "anthropic", or "ollama".
	Provider string `toml:"provider"`

	// Model overrides the provider's default model.
	Model string `toml:"model"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey is usually supplied via OPENAI_API_KEY or
	// ANTHROPIC_API_KEY instead.
	APIKey string `toml:"api_key"`

	// MaxTokens caps answer length.
	MaxTokens int `toml:"max_tokens"`

	// Temperature controls randomness.
	Temperature float64 `toml:"temperature"`
}

// QueryConfig tunes retrieval and context assembly.
type QueryConfig struct {
	TopK               int     `toml:"top_k"`
	Dedup              bool    `toml:"dedup"`
	DedupThreshold     float64 `toml:"dedup_threshold"`
	PassageTokenBudget int     `toml:"passage_token_budget"`
	HistoryTokenBudget int     `toml:"history_token_budget"`
	SystemPrompt       string  `toml:"system_prompt"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Chunking: ChunkingConfig{
			ChunkSizeTokens: domain.DefaultChunkSizeTokens,
			OverlapTokens:   domain.DefaultOverlapTokens,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
		},
		Generation: GenerationConfig{
			Provider: ProviderOllama,
		},
		Query: QueryConfig{
			TopK:           5,
			Dedup:          true,
			DedupThreshold: 0.95,
		},
	}
}

// Load reads the config file, applies environment overrides, and
// validates. If path is empty, ~/.docsage/config.toml is used; a
// missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".docsage", "config.toml")
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file yet, run on defaults.
	case err != nil:
		return Config{}, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets environment variables override file values. API keys
// in particular should come from the environment, not the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.Embedding.Provider == ProviderOpenAI && cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
		if cfg.Generation.Provider == ProviderOpenAI && cfg.Generation.APIKey == "" {
			cfg.Generation.APIKey = v
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		if cfg.Generation.Provider == ProviderAnthropic && cfg.Generation.APIKey == "" {
			cfg.Generation.APIKey = v
		}
	}
	if v := os.Getenv("DOCSAGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if err := c.ChunkingDomain().Validate(); err != nil {
		return err
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfiguration, c.Embedding.Provider)
	}

	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("%w: unknown generation provider %q", domain.ErrConfiguration, c.Generation.Provider)
	}

	if c.Query.TopK < 1 {
		return fmt.Errorf("%w: top_k must be >= 1, got %d", domain.ErrConfiguration, c.Query.TopK)
	}
	return nil
}

// ChunkingDomain converts the TOML chunking section to the domain type.
func (c Config) ChunkingDomain() domain.ChunkingConfig {
	return domain.ChunkingConfig{
		ChunkSizeTokens: c.Chunking.ChunkSizeTokens,
		OverlapTokens:   c.Chunking.OverlapTokens,
	}
}
