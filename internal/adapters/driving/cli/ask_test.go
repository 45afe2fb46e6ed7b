package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driving"
)

func resetAskFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		askDocs = nil
		askConversation = ""
	})
}

func TestAskCmd_StreamsAnswerAndCitations(t *testing.T) {
	q := &fakeQueryService{events: []domain.StreamEvent{
		{Fragment: "The answer "},
		{Fragment: "is 42."},
		{Done: true, Citations: []domain.Citation{
			{PassageID: "p1", DocumentID: "doc-1", FirstPage: 3, LastPage: 4},
		}},
	}}
	convs := &fakeConversationService{}
	setTestServices(t, &fakeIngestService{}, q, convs)
	resetAskFlags(t)

	out, err := execute(t, "ask", "--doc", "doc-1", "what is the answer?")
	require.NoError(t, err)

	assert.Contains(t, out, "The answer is 42.")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "doc-1 (pages 3-4)")
	require.Len(t, convs.created, 1)
	assert.Equal(t, []string{"doc-1"}, convs.created[0])
	assert.Equal(t, []string{"what is the answer?"}, q.asked)
}

func TestAskCmd_ContinuesConversation(t *testing.T) {
	q := &fakeQueryService{events: []domain.StreamEvent{{Done: true}}}
	convs := &fakeConversationService{}
	setTestServices(t, &fakeIngestService{}, q, convs)
	resetAskFlags(t)

	_, err := execute(t, "ask", "--conversation", "conv-7", "follow up?")
	require.NoError(t, err)

	assert.Equal(t, "conv-7", q.lastConv)
	assert.Empty(t, convs.created)
}

func TestAskCmd_RequiresScope(t *testing.T) {
	setTestServices(t, &fakeIngestService{}, &fakeQueryService{}, &fakeConversationService{})
	resetAskFlags(t)

	_, err := execute(t, "ask", "unscoped question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--doc or --conversation")
}

func TestAskCmd_StreamFailure(t *testing.T) {
	streamErr := errors.New("upstream reset")
	q := &fakeQueryService{events: []domain.StreamEvent{
		{Fragment: "partial "},
		{Err: streamErr},
	}}
	setTestServices(t, &fakeIngestService{}, q, &fakeConversationService{})
	resetAskFlags(t)

	out, err := execute(t, "ask", "--conversation", "conv-1", "q")
	require.ErrorIs(t, err, streamErr)
	// Fragments already printed are not retracted.
	assert.Contains(t, out, "partial")
}

func TestChatCmd_InteractiveLoop(t *testing.T) {
	q := &fakeQueryService{events: []domain.StreamEvent{
		{Fragment: "hello"},
		{Done: true},
	}}
	convs := &fakeConversationService{}
	setTestServices(t, &fakeIngestService{}, q, convs)

	rootCmd.SetIn(strings.NewReader("first question\n/quit\n"))
	out, err := execute(t, "chat", "doc-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"first question"}, q.asked)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "Resume with: docsage chat --resume conv-new")
}

func TestChatCmd_ResumeUnknownConversation(t *testing.T) {
	convs := &fakeConversationService{getErr: domain.ErrNotFound}
	setTestServices(t, &fakeIngestService{}, &fakeQueryService{}, convs)
	t.Cleanup(func() { chatResume = "" })

	_, err := execute(t, "chat", "--resume", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistoryCmd_PrintsTranscript(t *testing.T) {
	convs := &fakeConversationService{history: []driving.ResolvedMessage{
		{Message: domain.Message{Role: domain.RoleUser, Content: "where?"}},
		{
			Message: domain.Message{Role: domain.RoleAssistant, Content: "On page 3."},
			Sources: []driving.ResolvedCitation{
				{
					Citation: domain.Citation{DocumentID: "doc-1", FirstPage: 3, LastPage: 3},
					Snippet:  "the relevant excerpt",
				},
				{
					Citation: domain.Citation{DocumentID: "doc-1", FirstPage: 4, LastPage: 4},
					Snippet:  domain.DanglingCitationText,
					Dangling: true,
				},
			},
		},
	}}
	setTestServices(t, &fakeIngestService{}, &fakeQueryService{}, convs)

	out, err := execute(t, "history", "conv-1")
	require.NoError(t, err)
	assert.Contains(t, out, "You: where?")
	assert.Contains(t, out, "Docsage: On page 3.")
	assert.Contains(t, out, "the relevant excerpt")
	assert.Contains(t, out, domain.DanglingCitationText)
}
