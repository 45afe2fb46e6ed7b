package driven

import (
	"context"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

// VectorIndexManager owns one similarity index per document.
//
// Concurrency discipline: one index may be searched by many concurrent
// readers; inserts during ingestion are exclusive per document. No reads
// are served for a document until its ingestion completes — the
// retrieval engine enforces that by filtering on document status.
type VectorIndexManager interface {
	// Create allocates an empty index for a document. Fails with
	// domain.ErrAlreadyExists when one is live for that id.
	Create(ctx context.Context, documentID string, dimension int) error

	// Insert adds one vector. The ordinal is kept alongside the passage
	// id so equal-score search hits break ties deterministically.
	Insert(ctx context.Context, documentID, passageID string, ordinal int, vector []float32) error

	// Search returns up to k nearest neighbours by inner product.
	// k must be >= 1, else domain.ErrInvalidArgument.
	// Searching an unknown document id fails with domain.ErrNotFound.
	Search(ctx context.Context, documentID string, query []float32, k int) ([]VectorHit, error)

	// Persist serialises the index to durable storage so it survives
	// process restart.
	Persist(ctx context.Context, documentID string) error

	// Restore loads a persisted index. expectedCount is the passage
	// count recorded in the metadata store; a mismatch fails with
	// domain.ErrIndexCorrupt and the document must be re-ingested.
	Restore(ctx context.Context, documentID string, expectedCount int) error

	// Delete destroys the index and its persisted blob. Idempotent:
	// deleting a non-existent index is a no-op.
	Delete(ctx context.Context, documentID string) error

	// Stats reports vector count and dimension for observability.
	Stats(ctx context.Context, documentID string) (domain.IndexStats, error)

	// Close releases all live indexes.
	Close() error
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// PassageID is the matched passage.
	PassageID string

	// Ordinal is the passage's position, used for tie-breaking.
	Ordinal int

	// Score is the inner-product similarity.
	Score float64
}
