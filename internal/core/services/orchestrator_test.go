package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage-labs/docsage-cli/internal/adapters/driven/storage/memory"
	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
)

type orchestratorFixture struct {
	orch  *QueryOrchestrator
	convs *memory.ConversationStore
	docs  *memory.DocumentStore
	llm   *fakeLLM
	ret   *retrievalFixture
}

func newOrchestratorFixture(t *testing.T, script []driven.StreamDelta) *orchestratorFixture {
	t.Helper()

	ret := newRetrievalFixture(t)
	convs := memory.NewConversationStore()
	llm := &fakeLLM{script: script}
	orch := NewQueryOrchestrator(convs, ret.engine,
		NewContextAssembler(AssemblerConfig{}), llm, QueryOptions{TopK: 3})

	return &orchestratorFixture{orch: orch, convs: convs, docs: ret.docs, llm: llm, ret: ret}
}

func (f *orchestratorFixture) newConversation(t *testing.T, docIDs ...string) *domain.Conversation {
	t.Helper()
	conv := &domain.Conversation{ID: "conv-1", DocumentIDs: docIDs, CreatedAt: time.Now().UTC()}
	require.NoError(t, f.convs.SaveConversation(context.Background(), conv))
	return conv
}

func drain(t *testing.T, ch <-chan domain.StreamEvent) (string, domain.StreamEvent) {
	t.Helper()
	var text strings.Builder
	var terminal domain.StreamEvent
	for ev := range ch {
		if ev.Done || ev.Err != nil {
			terminal = ev
			continue
		}
		text.WriteString(ev.Fragment)
	}
	return text.String(), terminal
}

func TestAsk_StreamsAnswerWithCitations(t *testing.T) {
	f := newOrchestratorFixture(t, []driven.StreamDelta{
		{Text: "The answer "},
		{Text: "is here."},
		{Done: true},
	})
	f.ret.indexDocument(t, "doc-1", []string{"supporting passage text"})
	conv := f.newConversation(t, "doc-1")
	ctx := context.Background()

	ch, err := f.orch.Ask(ctx, conv.ID, "supporting passage text")
	require.NoError(t, err)

	text, terminal := drain(t, ch)
	assert.Equal(t, "The answer is here.", text)
	require.True(t, terminal.Done)
	require.NoError(t, terminal.Err)
	require.NotEmpty(t, terminal.Citations)
	assert.Equal(t, "doc-1-p0", terminal.Citations[0].PassageID)

	// History: user question then assistant answer with citations.
	msgs, err := f.convs.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "supporting passage text", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "The answer is here.", msgs[1].Content)
	assert.Equal(t, terminal.Citations, msgs[1].Citations)
	assert.False(t, msgs[1].Incomplete)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.newConversation(t, "doc-1")

	_, err := f.orch.Ask(context.Background(), "conv-1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAsk_UnknownConversation(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	_, err := f.orch.Ask(context.Background(), "ghost", "question")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAsk_NoRelevantPassagesFixedReply(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	ctx := context.Background()
	// Document exists but is still pending, so retrieval skips it.
	require.NoError(t, f.docs.SaveDocument(ctx, &domain.Document{
		ID:     "doc-pending",
		Status: domain.StatusPending,
	}))
	conv := f.newConversation(t, "doc-pending")

	ch, err := f.orch.Ask(ctx, conv.ID, "anything")
	require.NoError(t, err)

	text, terminal := drain(t, ch)
	assert.Equal(t, NoRelevantPassagesReply, text)
	assert.True(t, terminal.Done)
	assert.Empty(t, terminal.Citations)
	// The model is never called.
	assert.Zero(t, f.llm.calls)

	msgs, err := f.convs.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, NoRelevantPassagesReply, msgs[1].Content)
}

func TestAsk_MidStreamFailurePreservesPartial(t *testing.T) {
	streamErr := errors.New("upstream reset")
	f := newOrchestratorFixture(t, []driven.StreamDelta{
		{Text: "one "},
		{Text: "two "},
		{Text: "three"},
		{Err: streamErr},
	})
	f.ret.indexDocument(t, "doc-1", []string{"some passage text"})
	conv := f.newConversation(t, "doc-1")
	ctx := context.Background()

	ch, err := f.orch.Ask(ctx, conv.ID, "some passage text")
	require.NoError(t, err)

	text, terminal := drain(t, ch)
	assert.Equal(t, "one two three", text)
	assert.ErrorIs(t, terminal.Err, streamErr)
	assert.False(t, terminal.Done)

	msgs, err := f.convs.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one two three", msgs[1].Content)
	assert.True(t, msgs[1].Incomplete)
	assert.Empty(t, msgs[1].Citations)
}

func TestAsk_BusyConversation(t *testing.T) {
	f := newOrchestratorFixture(t, []driven.StreamDelta{
		{Text: "slow answer"},
		{Done: true},
	})
	f.ret.indexDocument(t, "doc-1", []string{"some passage text"})
	conv := f.newConversation(t, "doc-1")
	ctx := context.Background()

	// Hold the first stream open by not draining it yet.
	ch1, err := f.orch.Ask(ctx, conv.ID, "some passage text")
	require.NoError(t, err)

	_, err = f.orch.Ask(ctx, conv.ID, "second question")
	assert.ErrorIs(t, err, domain.ErrBusy)

	drain(t, ch1)

	// After the first finishes the conversation is free again.
	ch2, err := f.orch.Ask(ctx, conv.ID, "some passage text")
	require.NoError(t, err)
	drain(t, ch2)
}

func TestAsk_ConcurrentAsksOneWins(t *testing.T) {
	f := newOrchestratorFixture(t, []driven.StreamDelta{
		{Text: "answer"},
		{Done: true},
	})
	f.ret.indexDocument(t, "doc-1", []string{"some passage text"})
	conv := f.newConversation(t, "doc-1")
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := f.orch.Ask(ctx, conv.ID, "some passage text")
			if err != nil {
				errs <- err
				return
			}
			drain(t, ch)
			errs <- nil
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, busy := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Positive(t, succeeded)
	assert.Equal(t, n, succeeded+busy)
}

func TestAsk_SystemPromptLeadsMessages(t *testing.T) {
	f := newOrchestratorFixture(t, []driven.StreamDelta{{Done: true}})
	f.ret.indexDocument(t, "doc-1", []string{"some passage text"})
	conv := f.newConversation(t, "doc-1")

	ch, err := f.orch.Ask(context.Background(), conv.ID, "some passage text")
	require.NoError(t, err)
	drain(t, ch)

	require.NotEmpty(t, f.llm.seenMessages)
	assert.Equal(t, "system", f.llm.seenMessages[0].Role)
	assert.Contains(t, f.llm.seenMessages[len(f.llm.seenMessages)-1].Content, "some passage text")
}
