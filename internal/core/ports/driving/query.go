package driving

import (
	"context"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

// QueryService answers questions about ingested documents.
type QueryService interface {
	// Ask streams a grounded answer to a question within a
	// conversation. Fragments arrive on the returned channel as they
	// are generated; the terminal event carries citations or an error.
	// A second Ask on the same conversation while one is in flight
	// fails with domain.ErrBusy.
	Ask(ctx context.Context, conversationID, question string) (<-chan domain.StreamEvent, error)
}

// ConversationService manages conversation lifecycle and history.
type ConversationService interface {
	// Create starts a conversation scoped to one or more documents.
	Create(ctx context.Context, documentIDs []string) (*domain.Conversation, error)

	// Get retrieves a conversation.
	Get(ctx context.Context, id string) (*domain.Conversation, error)

	// History returns the messages oldest first, with citations
	// resolved. Citations whose passage was deleted degrade to the
	// dangling marker instead of failing.
	History(ctx context.Context, id string) ([]ResolvedMessage, error)

	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, id string) error
}

// ResolvedMessage is a message with its citations hydrated for display.
type ResolvedMessage struct {
	// Message is the stored message.
	Message domain.Message

	// Sources holds one entry per citation, in citation order.
	Sources []ResolvedCitation
}

// ResolvedCitation is a citation joined with its passage text, or the
// dangling marker when the passage no longer exists.
type ResolvedCitation struct {
	// Citation is the stored reference.
	Citation domain.Citation

	// Snippet is a short excerpt of the passage text, or
	// domain.DanglingCitationText when the passage was deleted.
	Snippet string

	// Dangling reports that the passage no longer exists.
	Dangling bool
}
