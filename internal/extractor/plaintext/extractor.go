// Package plaintext extracts text from plain text and markdown files.
// The whole file is treated as a single page.
package plaintext

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor reads the full stream as one page of UTF-8 text.
type Extractor struct{}

// New creates a plaintext extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract validates the stream is UTF-8 text and prepares a one-page
// iterator.
func (e *Extractor) Extract(_ context.Context, rs io.ReadSeeker) (driven.PageIterator, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: rewind stream: %v", domain.ErrExtraction, err)
	}

	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: read stream: %v", domain.ErrExtraction, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8 text", domain.ErrExtraction)
	}

	return &pageIterator{text: string(data)}, nil
}

type pageIterator struct {
	text string
	done bool
}

// Next returns the single page, then io.EOF.
func (it *pageIterator) Next(ctx context.Context) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return domain.Page{}, err
	}
	if it.done {
		return domain.Page{}, io.EOF
	}
	it.done = true
	return domain.Page{Number: 1, Text: it.text}, nil
}

// PageCount is always 1 for plaintext.
func (it *pageIterator) PageCount() int {
	return 1
}
