package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
)

// fakeEmbedder is a deterministic in-process embedding service. The
// vector for a text is derived from a hash of its content, so the same
// text always embeds identically.
type fakeEmbedder struct {
	model         string
	dims          int
	maxInputChars int
	failWith      error
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{model: "fake-embed-1", dims: 4, maxInputChars: 1 << 20}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (driven.EmbedResult, error) {
	if f.failWith != nil {
		return driven.EmbedResult{}, f.failWith
	}
	truncated := false
	if utf8.RuneCountInString(text) > f.maxInputChars {
		truncated = true
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, f.dims)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%1000) / 1000
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return driven.EmbedResult{Vector: vec, Truncated: truncated}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]driven.EmbedResult, error) {
	results := make([]driven.EmbedResult, len(texts))
	for i, t := range texts {
		res, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (f *fakeEmbedder) Dimensions() int            { return f.dims }
func (f *fakeEmbedder) ModelName() string          { return f.model }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

// fakeLLM replays a scripted delta sequence and records the prompt it
// was given.
type fakeLLM struct {
	script []driven.StreamDelta

	mu           sync.Mutex
	seenMessages []domain.ChatMessage
	calls        int
}

var _ driven.LLMService = (*fakeLLM)(nil)

func (f *fakeLLM) GenerateStream(ctx context.Context, messages []domain.ChatMessage, _ driven.GenerateOptions) (<-chan driven.StreamDelta, error) {
	f.mu.Lock()
	f.calls++
	f.seenMessages = messages
	f.mu.Unlock()

	out := make(chan driven.StreamDelta)
	go func() {
		defer close(out)
		for _, d := range f.script {
			select {
			case out <- d:
			case <-ctx.Done():
				select {
				case out <- driven.StreamDelta{Err: ctx.Err()}:
				default:
				}
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeLLM) ModelName() string          { return "fake-llm" }
func (f *fakeLLM) Ping(context.Context) error { return nil }
func (f *fakeLLM) Close() error               { return nil }

// fakeExtractor treats the stored bytes as plain text, one page per
// blank-line-separated block.
type fakeExtractor struct{}

var _ driven.TextExtractor = (*fakeExtractor)(nil)

func (fakeExtractor) Extract(_ context.Context, rs io.ReadSeeker) (driven.PageIterator, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	var pages []domain.Page
	for i, block := range strings.Split(string(data), "\n\n") {
		pages = append(pages, domain.Page{Number: i + 1, Text: block})
	}
	return &fakePageIterator{pages: pages}, nil
}

type fakePageIterator struct {
	pages []domain.Page
	pos   int
}

func (it *fakePageIterator) Next(_ context.Context) (domain.Page, error) {
	if it.pos >= len(it.pages) {
		return domain.Page{}, io.EOF
	}
	p := it.pages[it.pos]
	it.pos++
	return p, nil
}

func (it *fakePageIterator) PageCount() int { return len(it.pages) }
