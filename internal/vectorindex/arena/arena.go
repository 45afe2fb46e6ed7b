// Package arena manages one in-memory similarity index per document.
//
// Indexes are exact flat inner-product scans. Vectors are stored as the
// embedding model produced them; scores are comparable across documents
// embedded with the same model, and result ordering is fully
// deterministic. Each index has its own
// read-write lock, so searches on different documents never contend and
// one document's ingestion never blocks another's queries.
package arena

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
	"github.com/docsage-labs/docsage-cli/internal/logger"
)

// Ensure Manager implements the interface.
var _ driven.VectorIndexManager = (*Manager)(nil)

// Manager is an arena of per-document index handles.
type Manager struct {
	mu      sync.RWMutex
	handles map[string]*handle
	dir     string
}

// handle is one document's index. Guarded by its own lock so readers of
// different documents never serialise on the arena.
type handle struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
}

type entry struct {
	passageID string
	ordinal   int
	vector    []float32
}

// NewManager creates an index arena persisting blobs under dir.
// If dir is empty, defaults to ~/.docsage/data/indexes.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".docsage", "data", "indexes")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	return &Manager{
		handles: make(map[string]*handle),
		dir:     dir,
	}, nil
}

// Create allocates an empty index for a document.
func (m *Manager) Create(_ context.Context, documentID string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidArgument, dimension)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.handles[documentID]; ok {
		return fmt.Errorf("index for document %s: %w", documentID, domain.ErrAlreadyExists)
	}

	m.handles[documentID] = &handle{dimension: dimension}
	logger.Debug("Created vector index for document %s (dim=%d)", documentID, dimension)
	return nil
}

// Insert adds one vector to a document's index.
func (m *Manager) Insert(_ context.Context, documentID, passageID string, ordinal int, vector []float32) error {
	h, err := m.handle(documentID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(vector) != h.dimension {
		return fmt.Errorf("%w: vector dimension %d, index dimension %d",
			domain.ErrInvalidArgument, len(vector), h.dimension)
	}

	h.entries = append(h.entries, entry{passageID: passageID, ordinal: ordinal, vector: vector})
	return nil
}

// Search returns up to k nearest neighbours by inner product, ordered
// by descending score with ascending passage ordinal breaking ties.
func (m *Manager) Search(_ context.Context, documentID string, query []float32, k int) ([]driven.VectorHit, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", domain.ErrInvalidArgument, k)
	}

	h, err := m.handle(documentID)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(query) != h.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			domain.ErrInvalidArgument, len(query), h.dimension)
	}

	hits := make([]driven.VectorHit, 0, len(h.entries))
	for _, e := range h.entries {
		hits = append(hits, driven.VectorHit{
			PassageID: e.passageID,
			Ordinal:   e.ordinal,
			Score:     dot(e.vector, query),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete destroys the index and its persisted blob. Idempotent.
func (m *Manager) Delete(_ context.Context, documentID string) error {
	m.mu.Lock()
	delete(m.handles, documentID)
	m.mu.Unlock()

	if err := os.Remove(m.blobPath(documentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing index blob: %w", err)
	}

	logger.Debug("Deleted vector index for document %s", documentID)
	return nil
}

// Stats reports vector count and dimension.
func (m *Manager) Stats(_ context.Context, documentID string) (domain.IndexStats, error) {
	h, err := m.handle(documentID)
	if err != nil {
		return domain.IndexStats{}, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return domain.IndexStats{
		DocumentID:  documentID,
		VectorCount: len(h.entries),
		Dimension:   h.dimension,
	}, nil
}

// Close releases all live indexes. Blobs on disk are untouched.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = make(map[string]*handle)
	return nil
}

func (m *Manager) handle(documentID string) (*handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.handles[documentID]
	if !ok {
		return nil, fmt.Errorf("index for document %s: %w", documentID, domain.ErrNotFound)
	}
	return h, nil
}

func (m *Manager) blobPath(documentID string) string {
	return filepath.Join(m.dir, documentID+".vec")
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
