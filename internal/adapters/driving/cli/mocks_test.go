package cli

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driving"
)

// setTestServices installs fakes for the package-level services and
// restores the previous values when the test ends. With fakes in place
// the root command skips configuration-based wiring.
func setTestServices(t *testing.T, ing driving.IngestService, q driving.QueryService, c driving.ConversationService) {
	t.Helper()
	prevIngest, prevQuery, prevConvs := ingestService, queryService, conversationService
	ingestService, queryService, conversationService = ing, q, c
	t.Cleanup(func() {
		ingestService, queryService, conversationService = prevIngest, prevQuery, prevConvs
	})
}

// execute runs the root command with args and returns captured output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

type fakeIngestService struct {
	submitted []string
	submitID  string
	submitErr error
	docs      map[string]*domain.Document
	stats     domain.IndexStats
	deleted   []string
	deleteErr error
	listDocs  []domain.Document
}

var _ driving.IngestService = (*fakeIngestService)(nil)

func (f *fakeIngestService) Submit(_ context.Context, r io.Reader, filename string) (string, error) {
	io.Copy(io.Discard, r)
	f.submitted = append(f.submitted, filename)
	return f.submitID, f.submitErr
}

func (f *fakeIngestService) Process(context.Context, string) error { return nil }

func (f *fakeIngestService) Reingest(_ context.Context, id string) (string, error) {
	if _, ok := f.docs[id]; !ok {
		return "", domain.ErrNotFound
	}
	return f.submitID, nil
}

func (f *fakeIngestService) Status(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (f *fakeIngestService) Stats(context.Context, string) (domain.IndexStats, error) {
	return f.stats, nil
}

func (f *fakeIngestService) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeIngestService) List(context.Context) ([]domain.Document, error) {
	return f.listDocs, nil
}

type fakeQueryService struct {
	events   []domain.StreamEvent
	askErr   error
	asked    []string
	lastConv string
}

var _ driving.QueryService = (*fakeQueryService)(nil)

func (f *fakeQueryService) Ask(_ context.Context, conversationID, question string) (<-chan domain.StreamEvent, error) {
	if f.askErr != nil {
		return nil, f.askErr
	}
	f.asked = append(f.asked, question)
	f.lastConv = conversationID

	out := make(chan domain.StreamEvent, len(f.events))
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out, nil
}

type fakeConversationService struct {
	created  [][]string
	conv     *domain.Conversation
	getErr   error
	history  []driving.ResolvedMessage
	deleted  []string
	createAt time.Time
}

var _ driving.ConversationService = (*fakeConversationService)(nil)

func (f *fakeConversationService) Create(_ context.Context, documentIDs []string) (*domain.Conversation, error) {
	f.created = append(f.created, documentIDs)
	if f.conv == nil {
		return &domain.Conversation{ID: "conv-new", DocumentIDs: documentIDs, CreatedAt: f.createAt}, nil
	}
	return f.conv, nil
}

func (f *fakeConversationService) Get(_ context.Context, id string) (*domain.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.conv != nil && f.conv.ID == id {
		return f.conv, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeConversationService) History(context.Context, string) ([]driving.ResolvedMessage, error) {
	return f.history, nil
}

func (f *fakeConversationService) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}
