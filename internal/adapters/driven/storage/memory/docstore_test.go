package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

func TestDocumentStore_TransitionStatus(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "doc-1", Status: domain.StatusPending}
	require.NoError(t, s.SaveDocument(ctx, doc))

	require.NoError(t, s.TransitionStatus(ctx, "doc-1", domain.StatusPending, domain.StatusProcessing))

	err := s.TransitionStatus(ctx, "doc-1", domain.StatusPending, domain.StatusProcessing)
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	err = s.TransitionStatus(ctx, "doc-1", domain.StatusProcessing, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = s.TransitionStatus(ctx, "ghost", domain.StatusPending, domain.StatusProcessing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_FindByContentHash(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	older := &domain.Document{ID: "doc-1", ContentHash: "h", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &domain.Document{ID: "doc-2", ContentHash: "h", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.SaveDocument(ctx, older))
	require.NoError(t, s.SaveDocument(ctx, newer))

	got, err := s.FindByContentHash(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "doc-2", got.ID)

	_, err = s.FindByContentHash(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_PassagesOrderedByOrdinal(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, s.SavePassages(ctx, []domain.Passage{
		{ID: "p2", DocumentID: "doc-1", Ordinal: 2},
		{ID: "p0", DocumentID: "doc-1", Ordinal: 0},
		{ID: "p1", DocumentID: "doc-1", Ordinal: 1},
		{ID: "other", DocumentID: "doc-2", Ordinal: 0},
	}))

	got, err := s.GetPassages(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, p := range got {
		assert.Equal(t, i, p.Ordinal)
	}
}

func TestDocumentStore_DeleteRemovesPassages(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, s.SaveDocument(ctx, &domain.Document{ID: "doc-1"}))
	require.NoError(t, s.SavePassages(ctx, []domain.Passage{{ID: "p0", DocumentID: "doc-1"}}))

	require.NoError(t, s.DeleteDocument(ctx, "doc-1"))

	_, err := s.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetPassage(ctx, "p0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConversationStore_AppendRequiresConversation(t *testing.T) {
	s := NewConversationStore()
	ctx := context.Background()

	err := s.AppendMessage(ctx, &domain.Message{ID: "m1", ConversationID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	conv := &domain.Conversation{ID: "c1", DocumentIDs: []string{"doc-1"}}
	require.NoError(t, s.SaveConversation(ctx, conv))
	assert.ErrorIs(t, s.SaveConversation(ctx, conv), domain.ErrAlreadyExists)

	require.NoError(t, s.AppendMessage(ctx, &domain.Message{ID: "m1", ConversationID: "c1", Role: domain.RoleUser}))
	require.NoError(t, s.AppendMessage(ctx, &domain.Message{ID: "m2", ConversationID: "c1", Role: domain.RoleAssistant}))

	msgs, err := s.GetMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}
