// Package chunker splits extracted page text into overlapping passages.
package chunker

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

// token is one whitespace-delimited run of text with its byte offsets
// into the concatenated document text.
type token struct {
	start int
	end   int
	page  int
}

// Chunker produces passages from page-ordered text using a sliding
// token window. The window advances by (size - overlap); the final
// passage may be shorter but is never discarded.
type Chunker struct {
	cfg domain.ChunkingConfig
}

// New creates a chunker. The configuration is validated; overlap >=
// chunk size fails with domain.ErrConfiguration.
func New(cfg domain.ChunkingConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk splits the pages into passages for the given document. Zero
// extractable tokens yields zero passages; the caller decides what that
// means for the document's status.
func (c *Chunker) Chunk(documentID string, pages []domain.Page) ([]domain.Passage, error) {
	text, tokens := concatenate(pages)
	if len(tokens) == 0 {
		return nil, nil
	}

	stride := c.cfg.Stride()
	estimated := (len(tokens) / stride) + 1
	passages := make([]domain.Passage, 0, estimated)

	for start := 0; start < len(tokens); start += stride {
		end := start + c.cfg.ChunkSizeTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		overlap := c.cfg.OverlapTokens
		if start == 0 {
			overlap = 0
		}

		passages = append(passages, domain.Passage{
			ID:              uuid.New().String(),
			DocumentID:      documentID,
			Ordinal:         len(passages),
			FirstPage:       window[0].page,
			LastPage:        window[len(window)-1].page,
			Text:            text[window[0].start:window[len(window)-1].end],
			TokenCount:      len(window),
			OverlapWithPrev: overlap,
		})

		// The last window consumed the tail; a further stride would
		// re-emit a strict subset of it.
		if end == len(tokens) {
			break
		}
	}

	return passages, nil
}

// CountTokens returns the number of tokens in text under the chunker's
// tokenisation. Exposed for budget accounting elsewhere.
func CountTokens(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// concatenate joins page text with newlines, recording for every token
// its byte offsets and owning page.
func concatenate(pages []domain.Page) (string, []token) {
	var b strings.Builder
	var tokens []token

	for _, p := range pages {
		base := b.Len()
		b.WriteString(p.Text)
		b.WriteByte('\n')

		inTok := false
		tokStart := 0
		for i, r := range p.Text {
			if unicode.IsSpace(r) {
				if inTok {
					tokens = append(tokens, token{start: base + tokStart, end: base + i, page: p.Number})
					inTok = false
				}
				continue
			}
			if !inTok {
				tokStart = i
				inTok = true
			}
		}
		if inTok {
			tokens = append(tokens, token{start: base + tokStart, end: base + len(p.Text), page: p.Number})
		}
	}

	return b.String(), tokens
}
