// Package cli implements the docsage command line interface.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	anthropicllm "github.com/docsage-labs/docsage-cli/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/docsage-labs/docsage-cli/internal/adapters/driven/llm/ollama"
	openaillm "github.com/docsage-labs/docsage-cli/internal/adapters/driven/llm/openai"

	ollamaembed "github.com/docsage-labs/docsage-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/docsage-labs/docsage-cli/internal/adapters/driven/embedding/openai"

	"github.com/docsage-labs/docsage-cli/internal/adapters/driven/objectstore/fs"
	"github.com/docsage-labs/docsage-cli/internal/adapters/driven/storage/sqlite"
	"github.com/docsage-labs/docsage-cli/internal/chunker"
	"github.com/docsage-labs/docsage-cli/internal/config"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driving"
	"github.com/docsage-labs/docsage-cli/internal/core/services"
	"github.com/docsage-labs/docsage-cli/internal/extractor/pdf"
	"github.com/docsage-labs/docsage-cli/internal/extractor/plaintext"
	"github.com/docsage-labs/docsage-cli/internal/logger"
	"github.com/docsage-labs/docsage-cli/internal/vectorindex/arena"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services the commands talk to. Wired by initServices on first use;
// tests inject fakes directly.
var (
	ingestService       driving.IngestService
	queryService        driving.QueryService
	conversationService driving.ConversationService
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "docsage",
	Short: "Ask questions about your PDF documents",
	Long: `Docsage ingests PDF documents into a local vector index and answers
questions about them with citations, using a configurable LLM backend.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.docsage/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initServices builds the full service graph from configuration. Skipped
// for commands that need no backend and when services are already set.
func initServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	switch cmd.Name() {
	case "version", "help", "completion":
		return nil
	}
	if cmd.Parent() != nil && cmd.Parent().Name() == "completion" {
		return nil
	}
	if ingestService != nil && queryService != nil && conversationService != nil {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var objectDir, indexDir string
	if cfg.DataDir != "" {
		objectDir = filepath.Join(cfg.DataDir, "objects")
		indexDir = filepath.Join(cfg.DataDir, "indexes")
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	objects, err := fs.NewObjectStore(objectDir)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}
	indexes, err := arena.NewManager(indexDir)
	if err != nil {
		return fmt.Errorf("opening index arena: %w", err)
	}

	ch, err := chunker.New(cfg.ChunkingDomain())
	if err != nil {
		return err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	llm, err := buildLLM(cfg)
	if err != nil {
		return err
	}

	docs := store.DocumentStore()
	convs := store.ConversationStore()

	plain := plaintext.New()
	extractors := map[string]driven.TextExtractor{
		".pdf": pdf.New(),
		".txt": plain,
		".md":  plain,
	}

	ingestService = services.NewIngestPipeline(
		docs, objects, extractors, ch, embedder, indexes, services.IngestConfig{})

	retrieval := services.NewRetrievalEngine(docs, embedder, indexes)
	assembler := services.NewContextAssembler(services.AssemblerConfig{
		SystemPrompt:       cfg.Query.SystemPrompt,
		PassageTokenBudget: cfg.Query.PassageTokenBudget,
		HistoryTokenBudget: cfg.Query.HistoryTokenBudget,
	})
	queryService = services.NewQueryOrchestrator(convs, retrieval, assembler, llm, services.QueryOptions{
		TopK:           cfg.Query.TopK,
		Dedup:          cfg.Query.Dedup,
		DedupThreshold: cfg.Query.DedupThreshold,
		MaxTokens:      cfg.Generation.MaxTokens,
		Temperature:    cfg.Generation.Temperature,
	})
	conversationService = services.NewConversationManager(convs, docs)

	logger.Debug("services wired: embedding=%s generation=%s data=%s",
		cfg.Embedding.Provider, cfg.Generation.Provider, store.Path())
	return nil
}

func buildEmbedder(cfg config.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:        cfg.Embedding.APIKey,
			BaseURL:       cfg.Embedding.BaseURL,
			Model:         cfg.Embedding.Model,
			MaxInputChars: cfg.Embedding.MaxInputChars,
		})
	case config.ProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:       cfg.Embedding.BaseURL,
			Model:         cfg.Embedding.Model,
			MaxInputChars: cfg.Embedding.MaxInputChars,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func buildLLM(cfg config.Config) (driven.LLMService, error) {
	switch cfg.Generation.Provider {
	case config.ProviderOpenAI:
		return openaillm.NewLLMService(openaillm.Config{
			APIKey:  cfg.Generation.APIKey,
			BaseURL: cfg.Generation.BaseURL,
			Model:   cfg.Generation.Model,
		})
	case config.ProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  cfg.Generation.APIKey,
			BaseURL: cfg.Generation.BaseURL,
			Model:   cfg.Generation.Model,
		})
	case config.ProviderOllama:
		return ollamallm.NewLLMService(ollamallm.Config{
			BaseURL: cfg.Generation.BaseURL,
			Model:   cfg.Generation.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}
