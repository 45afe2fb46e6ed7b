package driving

import (
	"context"
	"io"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

// IngestService accepts documents and runs the ingestion pipeline.
type IngestService interface {
	// Submit accepts a document for ingestion and returns its id
	// immediately. Processing runs asynchronously; progress is visible
	// via Status. Submitting bytes identical to an existing document
	// returns the existing id without reprocessing.
	Submit(ctx context.Context, r io.Reader, filename string) (string, error)

	// Process runs the ingestion pipeline for a pending document. It is
	// called by Submit's background worker and by the watch loop; it is
	// exported so callers that need synchronous ingestion (tests, CLI
	// --wait) can drive it directly.
	Process(ctx context.Context, documentID string) error

	// Status returns the document record including its processing state.
	Status(ctx context.Context, documentID string) (*domain.Document, error)

	// Stats returns vector index statistics for a document.
	Stats(ctx context.Context, documentID string) (domain.IndexStats, error)

	// Reingest reprocesses a document from its stored bytes under the
	// current configuration, returning the fresh document id. The old
	// record and index are removed.
	Reingest(ctx context.Context, documentID string) (string, error)

	// Delete removes the document, its passages, and destroys its index.
	Delete(ctx context.Context, documentID string) error

	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)
}
