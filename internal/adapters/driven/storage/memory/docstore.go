// Package memory provides in-memory store implementations for tests
// and ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	passages  map[string]domain.Passage
}

var _ driven.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		passages:  make(map[string]domain.Passage),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// FindByContentHash retrieves a document by its content hash.
func (s *DocumentStore) FindByContentHash(_ context.Context, hash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.ContentHash != hash {
			continue
		}
		if found == nil || doc.CreatedAt.After(found.CreatedAt) {
			found = &doc
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

// TransitionStatus atomically moves a document between processing
// statuses using compare-and-set semantics.
func (s *DocumentStore) TransitionStatus(_ context.Context, id string, from, to domain.ProcessingStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s is not a forward transition", domain.ErrInvalidArgument, from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Status != from {
		return fmt.Errorf("document %s is not %s: %w", id, from, domain.ErrStatusConflict)
	}
	doc.Status = to
	s.documents[id] = doc
	return nil
}

// SavePassages stores all passages for a document.
func (s *DocumentStore) SavePassages(_ context.Context, passages []domain.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range passages {
		s.passages[p.ID] = p
	}
	return nil
}

// GetPassages retrieves a document's passages ordered by ordinal.
func (s *DocumentStore) GetPassages(_ context.Context, documentID string) ([]domain.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Passage
	for _, p := range s.passages {
		if p.DocumentID == documentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

// GetPassage retrieves a specific passage by ID.
func (s *DocumentStore) GetPassage(_ context.Context, id string) (*domain.Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.passages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// DeleteDocument removes a document and its passages.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, id)
	for pid, p := range s.passages {
		if p.DocumentID == id {
			delete(s.passages, pid)
		}
	}
	return nil
}

// ListDocuments returns all documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
