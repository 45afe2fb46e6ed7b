// Package pdf extracts page-ordered text from PDF documents using pdfcpu.
package pdf

import (
	"context"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor pulls text out of PDF page content streams. The document is
// parsed once per Extract; pages are decoded lazily, one at a time, in
// physical order.
type Extractor struct {
	conf *model.Configuration
}

// New creates a PDF extractor.
func New() *Extractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.EXTRACTCONTENT
	return &Extractor{conf: conf}
}

// Extract parses and validates the stream as a PDF and prepares a lazy
// page iterator. Malformed input fails with domain.ErrExtraction.
func (e *Extractor) Extract(_ context.Context, rs io.ReadSeeker) (driven.PageIterator, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: rewind stream: %v", domain.ErrExtraction, err)
	}

	pctx, err := api.ReadValidateAndOptimize(rs, e.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: not a well-formed PDF: %v", domain.ErrExtraction, err)
	}
	if pctx.PageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", domain.ErrExtraction)
	}

	return &pageIterator{pctx: pctx, pageCount: pctx.PageCount}, nil
}

type pageIterator struct {
	pctx      *model.Context
	pageCount int
	next      int // 0-based index of the next page to decode
}

// Next decodes and returns the next page, or io.EOF after the last one.
func (it *pageIterator) Next(ctx context.Context) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return domain.Page{}, err
	}
	if it.next >= it.pageCount {
		return domain.Page{}, io.EOF
	}

	pageNr := it.next + 1
	it.next++

	content, err := pdfcpu.ExtractPageContent(it.pctx, pageNr)
	if err != nil {
		return domain.Page{}, fmt.Errorf("%w: extract page %d: %v", domain.ErrExtraction, pageNr, err)
	}
	if content == nil {
		return domain.Page{Number: pageNr}, nil
	}

	raw, err := io.ReadAll(content)
	if err != nil {
		return domain.Page{}, fmt.Errorf("%w: read page %d content: %v", domain.ErrExtraction, pageNr, err)
	}

	return domain.Page{Number: pageNr, Text: decodeContentText(raw)}, nil
}

// PageCount is the total number of physical pages.
func (it *pageIterator) PageCount() int {
	return it.pageCount
}
