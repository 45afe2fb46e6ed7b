package driven

import (
	"context"
	"io"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

// TextExtractor turns a raw document byte stream into ordered page text.
//
// Implementations exist per input format (PDF, plaintext). Extraction
// failures wrap domain.ErrExtraction and are reported, not retried.
type TextExtractor interface {
	// Extract prepares a page iterator over the document. The sequence
	// is lazy and finite; calling Extract again on a rewound stream
	// restarts it.
	Extract(ctx context.Context, rs io.ReadSeeker) (PageIterator, error)
}

// PageIterator yields pages in physical order.
type PageIterator interface {
	// Next returns the next page, or io.EOF after the last one.
	Next(ctx context.Context) (domain.Page, error)

	// PageCount is the total number of physical pages.
	PageCount() int
}
