package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

var ingestWait bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into the index",
	Long: `Submits one or more files for ingestion. Processing runs in the
background; use --wait to block until every document is indexed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var reingestCmd = &cobra.Command{
	Use:   "reingest [doc-id]",
	Short: "Reprocess a document from its stored bytes",
	Long: `Reprocesses a document under the current chunking and embedding
configuration. The old record is replaced by a fresh one with a new id.`,
	Args: cobra.ExactArgs(1),
	RunE: runReingest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWait, "wait", "w", false, "wait for processing to finish")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := cmd.Context()
	ids := make([]string, 0, len(args))

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}

		id, err := ingestService.Submit(ctx, f, filepath.Base(path))
		f.Close()
		if err != nil {
			return fmt.Errorf("submitting %s: %w", path, err)
		}

		cmd.Printf("Submitted %s as %s\n", filepath.Base(path), id)
		ids = append(ids, id)
	}

	if !ingestWait {
		cmd.Println("\nProcessing in the background. Check progress with: docsage status <id>")
		return nil
	}

	for _, id := range ids {
		doc, err := waitForDocument(ctx, id)
		if err != nil {
			return err
		}
		switch doc.Status {
		case domain.StatusCompleted:
			cmd.Printf("Indexed %s: %d pages, %d passages\n", id, doc.PageCount, doc.PassageCount)
		case domain.StatusFailed:
			cmd.Printf("Failed %s: %s\n", id, doc.Error)
		}
	}
	return nil
}

func runReingest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	id, err := ingestService.Reingest(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("reingesting %s: %w", args[0], err)
	}

	cmd.Printf("Reprocessing as %s\n", id)
	return nil
}

// waitForDocument polls until the document reaches a terminal status.
func waitForDocument(ctx context.Context, id string) (*domain.Document, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		doc, err := ingestService.Status(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("checking status of %s: %w", id, err)
		}
		if doc.Status == domain.StatusCompleted || doc.Status == domain.StatusFailed {
			return doc, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
