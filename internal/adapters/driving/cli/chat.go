package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

var chatResume string

var chatCmd = &cobra.Command{
	Use:   "chat [doc-id...]",
	Short: "Chat interactively with documents",
	Long: `Starts an interactive question loop over the given documents.
Use --resume to continue an existing conversation instead.
Type /quit or press Ctrl-D to leave.`,
	RunE: runChat,
}

var historyCmd = &cobra.Command{
	Use:   "history [conversation-id]",
	Short: "Show a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	chatCmd.Flags().StringVarP(&chatResume, "resume", "r", "", "conversation id to resume")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if queryService == nil || conversationService == nil {
		return errors.New("query service not configured")
	}

	ctx := cmd.Context()

	var convID string
	switch {
	case chatResume != "":
		conv, err := conversationService.Get(ctx, chatResume)
		if err != nil {
			return fmt.Errorf("resuming conversation: %w", err)
		}
		convID = conv.ID
		cmd.Printf("Resuming conversation %s over %s\n",
			conv.ID, strings.Join(conv.DocumentIDs, ", "))
	case len(args) > 0:
		conv, err := conversationService.Create(ctx, args)
		if err != nil {
			return fmt.Errorf("creating conversation: %w", err)
		}
		convID = conv.ID
		cmd.Printf("Conversation %s started. Type /quit to leave.\n", conv.ID)
	default:
		return errors.New("give document ids to chat over, or --resume a conversation")
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "/quit" || question == "/exit" {
			break
		}

		events, err := queryService.Ask(ctx, convID, question)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			continue
		}

		citations, err := streamAnswer(cmd, events)
		if err != nil {
			cmd.Printf("Error: %v\n", err)
			continue
		}
		printCitations(cmd, citations)
	}

	cmd.Printf("\nBye. Resume with: docsage chat --resume %s\n", convID)
	return scanner.Err()
}

func runHistory(cmd *cobra.Command, args []string) error {
	if conversationService == nil {
		return errors.New("conversation service not configured")
	}

	messages, err := conversationService.History(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if len(messages) == 0 {
		cmd.Println("No messages yet.")
		return nil
	}

	for _, m := range messages {
		switch m.Message.Role {
		case domain.RoleUser:
			cmd.Printf("You: %s\n", m.Message.Content)
		case domain.RoleAssistant:
			cmd.Printf("Docsage: %s\n", m.Message.Content)
			if m.Message.Incomplete {
				cmd.Println("  (answer was cut short)")
			}
			for i, src := range m.Sources {
				cmd.Printf("  [%d] %s %s: %s\n", i+1,
					src.Citation.DocumentID,
					formatPageRange(src.Citation.FirstPage, src.Citation.LastPage),
					src.Snippet)
			}
		}
		cmd.Println()
	}
	return nil
}
