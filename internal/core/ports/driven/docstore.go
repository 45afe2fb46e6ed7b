package driven

import (
	"context"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

// DocumentStore persists documents and passages.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// FindByContentHash retrieves a document by its content hash.
	// Used to short-circuit duplicate submissions.
	FindByContentHash(ctx context.Context, hash string) (*domain.Document, error)

	// TransitionStatus atomically moves a document from one processing
	// status to another (compare-and-set). Returns
	// domain.ErrStatusConflict when the stored status is not `from`.
	TransitionStatus(ctx context.Context, id string, from, to domain.ProcessingStatus) error

	// SavePassages stores all passages for a document in one batch.
	SavePassages(ctx context.Context, passages []domain.Passage) error

	// GetPassages retrieves a document's passages ordered by ordinal.
	GetPassages(ctx context.Context, documentID string) ([]domain.Passage, error)

	// GetPassage retrieves a specific passage by ID.
	GetPassage(ctx context.Context, id string) (*domain.Passage, error)

	// DeleteDocument removes a document and its passages.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}

// ConversationStore persists conversations and their append-only
// message logs.
type ConversationStore interface {
	// SaveConversation stores a new conversation.
	SaveConversation(ctx context.Context, conv *domain.Conversation) error

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// AppendMessage appends a message to a conversation. Messages are
	// never updated or reordered afterwards.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// GetMessages returns a conversation's messages oldest first.
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)

	// DeleteConversation removes a conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error
}
