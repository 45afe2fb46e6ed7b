package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
	"github.com/docsage-labs/docsage-cli/internal/logger"
)

// RetrievalEngine embeds a query and searches the vector indexes of a
// document scope, merging per-document hits into one ranked list.
type RetrievalEngine struct {
	docs     driven.DocumentStore
	embedder driven.EmbeddingService
	indexes  driven.VectorIndexManager
}

// NewRetrievalEngine creates a retrieval engine.
func NewRetrievalEngine(
	docs driven.DocumentStore,
	embedder driven.EmbeddingService,
	indexes driven.VectorIndexManager,
) *RetrievalEngine {
	return &RetrievalEngine{
		docs:     docs,
		embedder: embedder,
		indexes:  indexes,
	}
}

// Retrieve returns the top-k passages for the query across the given
// documents.
//
// Scope rules: every document id must exist; documents that are not
// completed are skipped without error, and an all-skipped scope yields
// an empty result. Documents embedded under a different model than the
// configured one fail the whole query with domain.ErrScopeMismatch
// before any index is touched.
func (e *RetrievalEngine) Retrieve(
	ctx context.Context,
	documentIDs []string,
	query string,
	opts domain.RetrievalOptions,
) ([]domain.RetrievedPassage, error) {
	if opts.TopK < 1 {
		return nil, fmt.Errorf("%w: top-k must be >= 1, got %d", domain.ErrInvalidArgument, opts.TopK)
	}
	if len(documentIDs) == 0 {
		return nil, fmt.Errorf("%w: empty document scope", domain.ErrInvalidArgument)
	}

	searchable := make([]*domain.Document, 0, len(documentIDs))
	for _, id := range documentIDs {
		doc, err := e.docs.GetDocument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving scope document %s: %w", id, err)
		}
		if doc.Status != domain.StatusCompleted {
			logger.Debug("Skipping document %s in scope: status %s", id, doc.Status)
			continue
		}
		if doc.EmbeddingModel != e.embedder.ModelName() {
			return nil, fmt.Errorf("document %s embedded with %s, query uses %s: %w",
				id, doc.EmbeddingModel, e.embedder.ModelName(), domain.ErrScopeMismatch)
		}
		searchable = append(searchable, doc)
	}
	if len(searchable) == 0 {
		return nil, nil
	}

	embedded, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var merged []domain.RetrievedPassage
	for _, doc := range searchable {
		hits, err := e.search(ctx, doc, embedded.Vector, opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("searching document %s: %w", doc.ID, err)
		}
		for _, hit := range hits {
			passage, err := e.docs.GetPassage(ctx, hit.PassageID)
			if err != nil {
				return nil, fmt.Errorf("loading passage %s: %w", hit.PassageID, err)
			}
			merged = append(merged, domain.RetrievedPassage{
				Passage:    *passage,
				Score:      hit.Score,
				DocumentID: doc.ID,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Passage.Ordinal != merged[j].Passage.Ordinal {
			return merged[i].Passage.Ordinal < merged[j].Passage.Ordinal
		}
		return merged[i].DocumentID < merged[j].DocumentID
	})

	if opts.Dedup {
		merged = dedupe(merged, opts.DedupThreshold)
	}

	if len(merged) > opts.TopK {
		merged = merged[:opts.TopK]
	}
	return merged, nil
}

// search runs one index lookup, restoring the index from its persisted
// blob when the process has restarted since ingestion.
func (e *RetrievalEngine) search(ctx context.Context, doc *domain.Document, vector []float32, k int) ([]driven.VectorHit, error) {
	hits, err := e.indexes.Search(ctx, doc.ID, vector, k)
	if !errors.Is(err, domain.ErrNotFound) {
		return hits, err
	}

	logger.Debug("Index for document %s not live, restoring from disk", doc.ID)
	if err := e.indexes.Restore(ctx, doc.ID, doc.PassageCount); err != nil {
		return nil, err
	}
	return e.indexes.Search(ctx, doc.ID, vector, k)
}

// dedupe removes lower-ranked passages that nearly duplicate a kept
// one. Similarity is the Ochiai coefficient over lowercase token sets.
func dedupe(passages []domain.RetrievedPassage, threshold float64) []domain.RetrievedPassage {
	if threshold <= 0 {
		return passages
	}

	kept := make([]domain.RetrievedPassage, 0, len(passages))
	keptSets := make([]map[string]struct{}, 0, len(passages))

	for _, p := range passages {
		set := tokenSet(p.Passage.Text)
		duplicate := false
		for _, ks := range keptSets {
			if ochiai(set, ks) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, p)
		keptSets = append(keptSets, set)
	}
	return kept
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), unicode.IsSpace) {
		set[tok] = struct{}{}
	}
	return set
}

// ochiai is |A ∩ B| / sqrt(|A| * |B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(a))*float64(len(b)))
}
