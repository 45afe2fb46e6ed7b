package domain

import "time"

// ProcessingStatus tracks a document through its ingestion lifecycle.
// Transitions only move forward: pending -> processing -> completed/failed.
// Failed is terminal; recovery requires a fresh ingestion attempt.
type ProcessingStatus string

const (
	// StatusPending means the document is accepted but not yet processed.
	StatusPending ProcessingStatus = "pending"

	// StatusProcessing means the ingestion pipeline is running.
	StatusProcessing ProcessingStatus = "processing"

	// StatusCompleted means the document is indexed and queryable.
	StatusCompleted ProcessingStatus = "completed"

	// StatusFailed means ingestion failed. Terminal.
	StatusFailed ProcessingStatus = "failed"
)

// CanTransitionTo reports whether a forward transition to next is legal.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Document represents an ingested document with metadata.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// SourceRef is the object storage handle for the raw bytes.
	SourceRef string

	// Filename is the name the document was submitted under.
	Filename string

	// ContentHash is the SHA-256 of the raw bytes, used to detect
	// duplicate submissions.
	ContentHash string

	// PageCount is the number of physical pages.
	PageCount int

	// Status is the ingestion lifecycle state.
	Status ProcessingStatus

	// EmbeddingModel is the model configuration that embedded this
	// document's passages. Queries spanning multiple documents must
	// agree on this value.
	EmbeddingModel string

	// PassageCount is the number of passages after a completed ingestion.
	PassageCount int

	// TruncatedPassages counts passages whose text exceeded the embedding
	// model's input limit and was truncated. Kept for diagnosing
	// retrieval quality issues.
	TruncatedPassages int

	// Error records why ingestion failed, empty otherwise.
	Error string

	// CreatedAt is when the document was accepted.
	CreatedAt time.Time

	// ProcessedAt is when ingestion finished, zero until then.
	ProcessedAt time.Time
}

// Passage is a bounded, overlapping slice of a document's extracted text.
// It is the unit of retrieval.
type Passage struct {
	// ID is the unique identifier for the passage.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Ordinal is the position within the document. Passages are totally
	// ordered by ordinal.
	Ordinal int

	// FirstPage and LastPage are the source pages the passage spans.
	FirstPage int
	LastPage  int

	// Text is the raw passage text.
	Text string

	// TokenCount is the number of tokens in Text.
	TokenCount int

	// OverlapWithPrev is the number of tokens shared with the previous
	// passage. Zero for the first passage, identical for all others
	// under one chunking configuration.
	OverlapWithPrev int

	// Truncated records whether the text was cut to fit the embedding
	// model's input limit.
	Truncated bool
}

// IndexStats describes a document's vector index for observability.
type IndexStats struct {
	// DocumentID identifies the index.
	DocumentID string

	// VectorCount is the number of stored vectors. Equals the passage
	// count after a completed ingestion.
	VectorCount int

	// Dimension is the embedding vector size.
	Dimension int
}
