package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driving"
)

// snippetRunes bounds the excerpt shown for a resolved citation.
const snippetRunes = 200

// Ensure ConversationManager implements the interface.
var _ driving.ConversationService = (*ConversationManager)(nil)

// ConversationManager handles conversation lifecycle and history
// hydration.
type ConversationManager struct {
	convs driven.ConversationStore
	docs  driven.DocumentStore
}

// NewConversationManager creates a conversation manager.
func NewConversationManager(convs driven.ConversationStore, docs driven.DocumentStore) *ConversationManager {
	return &ConversationManager{convs: convs, docs: docs}
}

// Create starts a conversation scoped to one or more documents. Every
// document in the scope must exist; status is not checked here because
// a pending document may complete before the first question.
func (m *ConversationManager) Create(ctx context.Context, documentIDs []string) (*domain.Conversation, error) {
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: conversation needs at least one document", domain.ErrInvalidArgument)
	}
	for _, id := range documentIDs {
		if _, err := m.docs.GetDocument(ctx, id); err != nil {
			return nil, fmt.Errorf("scope document %s: %w", id, err)
		}
	}

	conv := &domain.Conversation{
		ID:          uuid.New().String(),
		DocumentIDs: documentIDs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.convs.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("saving conversation: %w", err)
	}
	return conv, nil
}

// Get retrieves a conversation.
func (m *ConversationManager) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	return m.convs.GetConversation(ctx, id)
}

// History returns the messages oldest first with citations resolved.
// A citation whose passage was deleted degrades to the dangling marker
// instead of failing the whole call.
func (m *ConversationManager) History(ctx context.Context, id string) ([]driving.ResolvedMessage, error) {
	if _, err := m.convs.GetConversation(ctx, id); err != nil {
		return nil, err
	}

	msgs, err := m.convs.GetMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}

	resolved := make([]driving.ResolvedMessage, len(msgs))
	for i, msg := range msgs {
		rm := driving.ResolvedMessage{Message: msg}
		for _, c := range msg.Citations {
			rm.Sources = append(rm.Sources, m.resolveCitation(ctx, c))
		}
		resolved[i] = rm
	}
	return resolved, nil
}

// Delete removes a conversation and its messages.
func (m *ConversationManager) Delete(ctx context.Context, id string) error {
	return m.convs.DeleteConversation(ctx, id)
}

func (m *ConversationManager) resolveCitation(ctx context.Context, c domain.Citation) driving.ResolvedCitation {
	passage, err := m.docs.GetPassage(ctx, c.PassageID)
	if err != nil {
		// Deleted passages degrade to the marker; infrastructure
		// failures are treated the same rather than failing history.
		return driving.ResolvedCitation{
			Citation: c,
			Snippet:  domain.DanglingCitationText,
			Dangling: true,
		}
	}
	return driving.ResolvedCitation{
		Citation: c,
		Snippet:  snippet(passage.Text),
	}
}

// snippet cuts text to snippetRunes runes without splitting a rune.
func snippet(text string) string {
	n := 0
	for i := range text {
		if n == snippetRunes {
			return text[:i] + "..."
		}
		n++
	}
	return text
}
