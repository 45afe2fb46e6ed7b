package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, ProviderOllama, cfg.Generation.Provider)
	assert.Equal(t, domain.DefaultChunkSizeTokens, cfg.Chunking.ChunkSizeTokens)
	assert.Equal(t, 5, cfg.Query.TopK)
	assert.True(t, cfg.Query.Dedup)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/tmp/docsage-test"

[chunking]
chunk_size_tokens = 200
overlap_tokens = 20

[embedding]
provider = "openai"
model = "text-embedding-3-large"
api_key = "sk-test"

[generation]
provider = "anthropic"
api_key = "sk-ant-test"
max_tokens = 2048

[query]
top_k = 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/docsage-test", cfg.DataDir)
	assert.Equal(t, 200, cfg.Chunking.ChunkSizeTokens)
	assert.Equal(t, ProviderOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, ProviderAnthropic, cfg.Generation.Provider)
	assert.Equal(t, 2048, cfg.Generation.MaxTokens)
	assert.Equal(t, 8, cfg.Query.TopK)
	// Overlap was set explicitly; the default must not clobber it.
	assert.Equal(t, 20, cfg.Chunking.OverlapTokens)
}

func TestLoad_EnvSuppliesAPIKeys(t *testing.T) {
	path := writeConfig(t, `
[embedding]
provider = "openai"

[generation]
provider = "anthropic"
`)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-ant-env", cfg.Generation.APIKey)
}

func TestLoad_FileKeyBeatsEnv(t *testing.T) {
	path := writeConfig(t, `
[embedding]
provider = "openai"
api_key = "sk-file"
`)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.Embedding.APIKey)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, "not [valid toml")

	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown embedding provider", func(c *Config) { c.Embedding.Provider = "bedrock" }},
		{"unknown generation provider", func(c *Config) { c.Generation.Provider = "gemini" }},
		{"zero top_k", func(c *Config) { c.Query.TopK = 0 }},
		{"overlap >= chunk size", func(c *Config) {
			c.Chunking.ChunkSizeTokens = 50
			c.Chunking.OverlapTokens = 50
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)
		})
	}
}

func TestValidate_DefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
