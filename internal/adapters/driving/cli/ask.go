package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

var (
	askDocs         []string
	askConversation string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question about documents",
	Long: `Asks a single question and streams the answer with citations.
Scope the question with --doc (repeatable) to start a fresh conversation,
or with --conversation to continue an existing one.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVarP(&askDocs, "doc", "d", nil, "document id to query (repeatable)")
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "existing conversation id")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil || conversationService == nil {
		return errors.New("query service not configured")
	}

	question := args[0]
	ctx := cmd.Context()

	convID := askConversation
	if convID == "" {
		if len(askDocs) == 0 {
			return errors.New("scope the question with --doc or --conversation")
		}
		conv, err := conversationService.Create(ctx, askDocs)
		if err != nil {
			return fmt.Errorf("creating conversation: %w", err)
		}
		convID = conv.ID
		cmd.Printf("Conversation: %s\n\n", convID)
	}

	events, err := queryService.Ask(ctx, convID, question)
	if err != nil {
		return fmt.Errorf("asking failed: %w", err)
	}

	citations, err := streamAnswer(cmd, events)
	if err != nil {
		return err
	}
	printCitations(cmd, citations)
	return nil
}

// streamAnswer prints answer fragments as they arrive and returns the
// citations from the terminal event.
func streamAnswer(cmd *cobra.Command, events <-chan domain.StreamEvent) ([]domain.Citation, error) {
	var citations []domain.Citation
	var streamErr error

	for ev := range events {
		switch {
		case ev.Err != nil:
			streamErr = ev.Err
		case ev.Done:
			citations = ev.Citations
		default:
			cmd.Print(ev.Fragment)
		}
	}
	cmd.Println()

	if streamErr != nil {
		return nil, fmt.Errorf("generation failed: %w", streamErr)
	}
	return citations, nil
}

func printCitations(cmd *cobra.Command, citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}
	cmd.Println("\nSources:")
	for i, c := range citations {
		cmd.Printf("  [%d] %s %s\n", i+1, c.DocumentID, formatPageRange(c.FirstPage, c.LastPage))
	}
}

func formatPageRange(first, last int) string {
	if first == last {
		return fmt.Sprintf("(page %d)", first)
	}
	return fmt.Sprintf("(pages %d-%d)", first, last)
}
