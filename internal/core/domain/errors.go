package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates malformed request parameters.
	// Rejected before any side effects occur.
	ErrInvalidArgument = errors.New("invalid argument")

	// Ingestion Errors.

	// ErrExtraction indicates the input is not a readable document of the
	// expected format, or contains no extractable text. Not retried
	// automatically; a new ingestion attempt must be submitted.
	ErrExtraction = errors.New("text extraction failed")

	// ErrConfiguration indicates invalid chunking parameters
	// (e.g. overlap >= chunk size). This is a misconfiguration and fatal.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrEmbedding indicates the embedding model call failed.
	// The affected document transitions to StatusFailed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexCorrupt indicates a restored index disagrees with the
	// expected passage count. The document must be re-ingested.
	ErrIndexCorrupt = errors.New("vector index corrupt")

	// Query Errors.

	// ErrScopeMismatch indicates a query scope mixes documents embedded
	// with different models. Rejected before any index is searched.
	ErrScopeMismatch = errors.New("query scope mixes embedding models")

	// ErrBusy indicates the conversation already has an in-flight query.
	// The caller should retry after the current query finishes.
	ErrBusy = errors.New("conversation busy")

	// ErrGeneration indicates the generation service failed mid-stream.
	// Partial output already emitted to the caller is preserved.
	ErrGeneration = errors.New("generation failed")

	// ErrStatusConflict indicates a processing status transition was
	// rejected because the stored status did not match the expected one.
	ErrStatusConflict = errors.New("status transition conflict")
)
