package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docsage-labs/docsage-cli/internal/chunker"
	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driving"
	"github.com/docsage-labs/docsage-cli/internal/logger"
)

// Embedding stage defaults.
const (
	DefaultEmbedBatchSize   = 32
	DefaultEmbedParallelism = 4
)

// Ensure IngestPipeline implements the interface.
var _ driving.IngestService = (*IngestPipeline)(nil)

// IngestPipeline runs documents through extract, chunk, embed, and
// index. Stages within one document are strictly sequential; separate
// documents may be ingested concurrently.
type IngestPipeline struct {
	docs       driven.DocumentStore
	objects    driven.ObjectStore
	extractors map[string]driven.TextExtractor
	chunker    *chunker.Chunker
	embedder   driven.EmbeddingService
	indexes    driven.VectorIndexManager

	batchSize   int
	parallelism int
	workers     workerGroup
}

// IngestConfig configures the pipeline. Zero values fall back to
// defaults.
type IngestConfig struct {
	// EmbedBatchSize is how many passages go into one embedding call.
	EmbedBatchSize int

	// EmbedParallelism bounds concurrent embedding calls per document.
	EmbedParallelism int
}

// NewIngestPipeline creates the ingestion pipeline. Extractors are
// keyed by lowercase file extension including the dot; the ".pdf"
// entry is required.
func NewIngestPipeline(
	docs driven.DocumentStore,
	objects driven.ObjectStore,
	extractors map[string]driven.TextExtractor,
	ch *chunker.Chunker,
	embedder driven.EmbeddingService,
	indexes driven.VectorIndexManager,
	cfg IngestConfig,
) *IngestPipeline {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if cfg.EmbedParallelism <= 0 {
		cfg.EmbedParallelism = DefaultEmbedParallelism
	}
	return &IngestPipeline{
		docs:        docs,
		objects:     objects,
		extractors:  extractors,
		chunker:     ch,
		embedder:    embedder,
		indexes:     indexes,
		batchSize:   cfg.EmbedBatchSize,
		parallelism: cfg.EmbedParallelism,
	}
}

// Submit accepts a document and returns its id immediately. Identical
// bytes short-circuit to the existing document unless its previous
// ingestion failed, in which case a fresh attempt starts.
func (p *IngestPipeline) Submit(ctx context.Context, r io.Reader, filename string) (string, error) {
	if _, ok := p.extractors[extensionOf(filename)]; !ok {
		return "", fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidArgument, filename)
	}

	handle, err := p.objects.Put(ctx, r)
	if err != nil {
		return "", fmt.Errorf("storing document bytes: %w", err)
	}
	// Filesystem handles are "<shard>/<sha256>"; the hash part doubles
	// as the duplicate-detection key.
	_, contentHash, found := strings.Cut(handle, "/")
	if !found {
		contentHash = handle
	}

	existing, err := p.docs.FindByContentHash(ctx, contentHash)
	if err == nil && existing.Status != domain.StatusFailed {
		logger.Debug("Submission of %s matches existing document %s, skipping reprocess", filename, existing.ID)
		return existing.ID, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("checking for duplicate: %w", err)
	}

	doc := &domain.Document{
		ID:          uuid.New().String(),
		SourceRef:   handle,
		Filename:    filepath.Base(filename),
		ContentHash: contentHash,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.docs.SaveDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("saving document: %w", err)
	}

	p.workers.spawn(func() {
		if err := p.Process(context.WithoutCancel(ctx), doc.ID); err != nil {
			logger.Warn("Background ingestion of document %s failed: %v", doc.ID, err)
		}
	})
	return doc.ID, nil
}

// Process runs the pipeline for a pending document. The compare-and-set
// transition to processing makes concurrent Process calls on one
// document safe: the loser gets domain.ErrStatusConflict.
func (p *IngestPipeline) Process(ctx context.Context, documentID string) error {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := p.docs.TransitionStatus(ctx, doc.ID, domain.StatusPending, domain.StatusProcessing); err != nil {
		return err
	}
	doc.Status = domain.StatusProcessing

	logger.Section("Ingesting " + doc.Filename)

	pages, err := p.extract(ctx, doc)
	if err != nil {
		return p.fail(ctx, doc, err)
	}
	doc.PageCount = len(pages)
	logger.Debug("Extracted %d pages from document %s", len(pages), doc.ID)

	passages, err := p.chunker.Chunk(doc.ID, pages)
	if err != nil {
		return p.fail(ctx, doc, err)
	}
	if len(passages) == 0 {
		return p.fail(ctx, doc, fmt.Errorf("%w: document has no extractable text", domain.ErrExtraction))
	}
	logger.Debug("Chunked document %s into %d passages", doc.ID, len(passages))

	vectors, truncated, err := p.embed(ctx, passages)
	if err != nil {
		return p.fail(ctx, doc, err)
	}

	if err := p.index(ctx, doc.ID, passages, vectors); err != nil {
		return p.fail(ctx, doc, err)
	}

	if err := p.docs.SavePassages(ctx, passages); err != nil {
		return p.fail(ctx, doc, err)
	}

	doc.PassageCount = len(passages)
	doc.TruncatedPassages = truncated
	doc.EmbeddingModel = p.embedder.ModelName()
	doc.ProcessedAt = time.Now().UTC()
	doc.Error = ""
	if err := p.docs.SaveDocument(ctx, doc); err != nil {
		return p.fail(ctx, doc, err)
	}
	if err := p.docs.TransitionStatus(ctx, doc.ID, domain.StatusProcessing, domain.StatusCompleted); err != nil {
		return err
	}

	logger.Info("Document %s ingested: %d pages, %d passages", doc.ID, doc.PageCount, doc.PassageCount)
	return nil
}

// Status returns the document record including its processing state.
func (p *IngestPipeline) Status(ctx context.Context, documentID string) (*domain.Document, error) {
	return p.docs.GetDocument(ctx, documentID)
}

// Stats returns vector index statistics for a document, restoring the
// index from disk after a restart.
func (p *IngestPipeline) Stats(ctx context.Context, documentID string) (domain.IndexStats, error) {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return domain.IndexStats{}, err
	}

	stats, err := p.indexes.Stats(ctx, documentID)
	if !errors.Is(err, domain.ErrNotFound) || doc.Status != domain.StatusCompleted {
		return stats, err
	}

	if err := p.indexes.Restore(ctx, documentID, doc.PassageCount); err != nil {
		return domain.IndexStats{}, err
	}
	return p.indexes.Stats(ctx, documentID)
}

// Reingest reprocesses a document from its stored bytes, for example
// after a chunking or model configuration change. Statuses only move
// forward, so reprocessing means a fresh document record; the old one
// and its index are removed. The raw bytes are kept.
func (p *IngestPipeline) Reingest(ctx context.Context, documentID string) (string, error) {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.Status == domain.StatusPending || doc.Status == domain.StatusProcessing {
		return "", fmt.Errorf("document %s is still being processed: %w", doc.ID, domain.ErrStatusConflict)
	}

	fresh := &domain.Document{
		ID:          uuid.New().String(),
		SourceRef:   doc.SourceRef,
		Filename:    doc.Filename,
		ContentHash: doc.ContentHash,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := p.indexes.Delete(ctx, doc.ID); err != nil {
		return "", fmt.Errorf("deleting old index: %w", err)
	}
	if err := p.docs.DeleteDocument(ctx, doc.ID); err != nil {
		return "", fmt.Errorf("deleting old document: %w", err)
	}
	if err := p.docs.SaveDocument(ctx, fresh); err != nil {
		return "", fmt.Errorf("saving document: %w", err)
	}

	p.workers.spawn(func() {
		if err := p.Process(context.WithoutCancel(ctx), fresh.ID); err != nil {
			logger.Warn("Reingestion of document %s failed: %v", fresh.ID, err)
		}
	})
	return fresh.ID, nil
}

// Delete removes the document, its passages, its raw bytes, and its
// index.
func (p *IngestPipeline) Delete(ctx context.Context, documentID string) error {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if err := p.indexes.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	if err := p.docs.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if doc.SourceRef != "" {
		if err := p.objects.Delete(ctx, doc.SourceRef); err != nil {
			return fmt.Errorf("deleting stored bytes: %w", err)
		}
	}
	return nil
}

// List returns all documents, newest first.
func (p *IngestPipeline) List(ctx context.Context) ([]domain.Document, error) {
	return p.docs.ListDocuments(ctx)
}

// Wait blocks until all background ingestions spawned by Submit have
// finished. Called on shutdown.
func (p *IngestPipeline) Wait() {
	p.workers.wait()
}

// extract pulls the stored bytes and iterates all pages.
func (p *IngestPipeline) extract(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	extractor, ok := p.extractors[extensionOf(doc.Filename)]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for %q", domain.ErrExtraction, doc.Filename)
	}

	rs, err := p.objects.Get(ctx, doc.SourceRef)
	if err != nil {
		return nil, fmt.Errorf("opening stored bytes: %w", err)
	}
	defer rs.Close()

	iter, err := extractor.Extract(ctx, rs)
	if err != nil {
		return nil, err
	}

	pages := make([]domain.Page, 0, iter.PageCount())
	for {
		page, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// embed fills the results slice from bounded parallel batches. Batch
// boundaries are deterministic; parallelism only reorders wall-clock
// completion. Returns the per-passage vectors and the truncation count.
func (p *IngestPipeline) embed(ctx context.Context, passages []domain.Passage) ([][]float32, int, error) {
	results := make([]driven.EmbedResult, len(passages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)

	for start := 0; start < len(passages); start += p.batchSize {
		end := min(start+p.batchSize, len(passages))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = passages[i].Text
			}
			batch, err := p.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embedding passages %d-%d: %w", start, end-1, err)
			}
			copy(results[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	vectors := make([][]float32, len(passages))
	truncated := 0
	for i := range passages {
		vectors[i] = results[i].Vector
		passages[i].Truncated = results[i].Truncated
		if results[i].Truncated {
			truncated++
		}
	}
	return vectors, truncated, nil
}

// index builds, fills, and persists the document's vector index.
func (p *IngestPipeline) index(ctx context.Context, documentID string, passages []domain.Passage, vectors [][]float32) error {
	// Clear any stale index from a previous failed attempt.
	if err := p.indexes.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("clearing stale index: %w", err)
	}
	if err := p.indexes.Create(ctx, documentID, p.embedder.Dimensions()); err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	for i := range passages {
		if err := p.indexes.Insert(ctx, documentID, passages[i].ID, passages[i].Ordinal, vectors[i]); err != nil {
			return fmt.Errorf("indexing passage %d: %w", passages[i].Ordinal, err)
		}
	}

	if err := p.indexes.Persist(ctx, documentID); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}
	return nil
}

// fail records the error on the document and transitions it to failed.
func (p *IngestPipeline) fail(ctx context.Context, doc *domain.Document, cause error) error {
	logger.Warn("Ingestion of document %s failed: %v", doc.ID, cause)

	doc.Error = cause.Error()
	doc.ProcessedAt = time.Now().UTC()
	if err := p.docs.SaveDocument(ctx, doc); err != nil {
		logger.Warn("Failed to record error on document %s: %v", doc.ID, err)
	}
	if err := p.docs.TransitionStatus(ctx, doc.ID, domain.StatusProcessing, domain.StatusFailed); err != nil {
		logger.Warn("Failed to mark document %s failed: %v", doc.ID, err)
	}
	return cause
}

func extensionOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// workerGroup tracks background ingestion goroutines so shutdown can
// wait for them.
type workerGroup struct {
	wg sync.WaitGroup
}

func (g *workerGroup) spawn(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

func (g *workerGroup) wait() {
	g.wg.Wait()
}
