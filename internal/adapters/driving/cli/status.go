package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show document processing status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docID := args[0]
	ctx := cmd.Context()

	doc, err := ingestService.Status(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Filename:  %s\n", doc.Filename)
	cmd.Printf("  Status:    %s\n", doc.Status)
	cmd.Printf("  Submitted: %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))

	switch doc.Status {
	case domain.StatusCompleted:
		cmd.Printf("  Processed: %s\n", doc.ProcessedAt.Format("2006-01-02 15:04:05"))
		cmd.Printf("  Pages:     %d\n", doc.PageCount)
		cmd.Printf("  Passages:  %d\n", doc.PassageCount)
		cmd.Printf("  Model:     %s\n", doc.EmbeddingModel)
		if doc.TruncatedPassages > 0 {
			cmd.Printf("  Truncated: %d passages exceeded the embedding input limit\n",
				doc.TruncatedPassages)
		}

		stats, err := ingestService.Stats(ctx, docID)
		if err == nil {
			cmd.Printf("  Index:     %d vectors, %d dimensions\n",
				stats.VectorCount, stats.Dimension)
		}
	case domain.StatusFailed:
		cmd.Printf("  Error:     %s\n", doc.Error)
	}

	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docs, err := ingestService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested yet.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    File:   %s\n", docs[i].Filename)
		cmd.Printf("    Status: %s\n", docs[i].Status)
		if docs[i].Status == domain.StatusCompleted {
			cmd.Printf("    Size:   %d pages, %d passages\n",
				docs[i].PageCount, docs[i].PassageCount)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}
