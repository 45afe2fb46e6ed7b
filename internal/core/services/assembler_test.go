package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
)

func retrieved(id string, tokens int, score float64, text string) domain.RetrievedPassage {
	return domain.RetrievedPassage{
		Passage: domain.Passage{
			ID:         id,
			Text:       text,
			TokenCount: tokens,
			FirstPage:  1,
			LastPage:   1,
		},
		Score:      score,
		DocumentID: "doc-1",
	}
}

func TestAssemble_PassageBudgetStopsAtFirstOverflow(t *testing.T) {
	a := NewContextAssembler(AssemblerConfig{PassageTokenBudget: 100})

	passages := []domain.RetrievedPassage{
		retrieved("p0", 60, 0.9, "first passage"),
		retrieved("p1", 60, 0.8, "does not fit whole"),
		retrieved("p2", 30, 0.7, "would fit, but ranks below the overflow"),
	}

	got := a.Assemble("question?", nil, passages)
	// Assembly stops at p1, so a lower-ranked passage never enters the
	// context ahead of an excluded higher-ranked one.
	require.Len(t, got.IncludedPassages, 1)
	assert.Equal(t, "p0", got.IncludedPassages[0].Passage.ID)
}

func TestAssemble_IncludedPassagesArePrefixOfRanking(t *testing.T) {
	a := NewContextAssembler(AssemblerConfig{PassageTokenBudget: 10})

	passages := []domain.RetrievedPassage{
		retrieved("big", 12, 0.9, "over budget on its own"),
		retrieved("small", 5, 0.1, "fits but ranks last"),
	}

	got := a.Assemble("q", nil, passages)
	assert.Empty(t, got.IncludedPassages)
	assert.Equal(t, "q", got.Messages[len(got.Messages)-1].Content)
}

func TestAssemble_HistoryMostRecentFirst(t *testing.T) {
	a := NewContextAssembler(AssemblerConfig{HistoryTokenBudget: 5})

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "one two three four"},
		{Role: domain.RoleAssistant, Content: "five six"},
		{Role: domain.RoleUser, Content: "seven eight nine"},
	}

	got := a.Assemble("q", history, nil)
	// Budget of 5 tokens keeps only the two most recent messages (3+2),
	// rendered oldest first, plus the new user turn.
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "five six", got.Messages[0].Content)
	assert.Equal(t, "seven eight nine", got.Messages[1].Content)
	assert.Equal(t, "user", got.Messages[2].Role)
}

func TestAssemble_NoPassagesPlainQuestion(t *testing.T) {
	a := NewContextAssembler(AssemblerConfig{})

	got := a.Assemble("what is this?", nil, nil)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "what is this?", got.Messages[0].Content)
	assert.Empty(t, got.IncludedPassages)
	assert.NotEmpty(t, got.System)
}

func TestAssemble_UserTurnContainsPassagesAndQuestion(t *testing.T) {
	a := NewContextAssembler(AssemblerConfig{})

	got := a.Assemble("where?", nil, []domain.RetrievedPassage{
		retrieved("p0", 2, 0.9, "relevant excerpt"),
	})
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, "relevant excerpt")
	assert.Contains(t, got.Messages[0].Content, "Question: where?")
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewContextAssembler(AssemblerConfig{PassageTokenBudget: 50, HistoryTokenBudget: 50})

	history := []domain.Message{{Role: domain.RoleUser, Content: "earlier question"}}
	passages := []domain.RetrievedPassage{
		retrieved("p0", 20, 0.9, "alpha"),
		retrieved("p1", 20, 0.8, "beta"),
		retrieved("p2", 20, 0.7, "gamma"),
	}

	first := a.Assemble("q", history, passages)
	second := a.Assemble("q", history, passages)
	assert.Equal(t, first, second)
}
