package services

import (
	"fmt"
	"strings"

	"github.com/docsage-labs/docsage-cli/internal/chunker"
	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/logger"
)

// Default budgets and prompt for context assembly.
const (
	DefaultPassageTokenBudget = 2000
	DefaultHistoryTokenBudget = 1000

	// DefaultSystemPrompt instructs the model to stay grounded in the
	// supplied passages.
	DefaultSystemPrompt = `You are a document assistant. Answer using only the provided document excerpts. If the excerpts do not contain the answer, say so. Be concise.`
)

// ContextAssembler builds the token-bounded prompt for generation.
// Assembly is deterministic: identical inputs and budgets always yield
// an identical PromptContext.
type ContextAssembler struct {
	systemPrompt       string
	passageTokenBudget int
	historyTokenBudget int
}

// AssemblerConfig configures the context assembler. Zero values fall
// back to the defaults above.
type AssemblerConfig struct {
	SystemPrompt       string
	PassageTokenBudget int
	HistoryTokenBudget int
}

// NewContextAssembler creates a context assembler.
func NewContextAssembler(cfg AssemblerConfig) *ContextAssembler {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.PassageTokenBudget <= 0 {
		cfg.PassageTokenBudget = DefaultPassageTokenBudget
	}
	if cfg.HistoryTokenBudget <= 0 {
		cfg.HistoryTokenBudget = DefaultHistoryTokenBudget
	}
	return &ContextAssembler{
		systemPrompt:       cfg.SystemPrompt,
		passageTokenBudget: cfg.PassageTokenBudget,
		historyTokenBudget: cfg.HistoryTokenBudget,
	}
}

// Assemble builds the prompt from ranked passages, prior history, and
// the question.
//
// Passages are taken in rank order until one does not fit the remaining
// passage budget; assembly stops there, so the included set is always a
// prefix of the ranking and a passage is included whole or not at all.
// History is kept most recent first until its budget runs out, then
// reordered oldest first for the prompt.
func (a *ContextAssembler) Assemble(
	question string,
	history []domain.Message,
	passages []domain.RetrievedPassage,
) domain.PromptContext {
	included := make([]domain.RetrievedPassage, 0, len(passages))
	remaining := a.passageTokenBudget
	for _, p := range passages {
		tokens := p.Passage.TokenCount
		if tokens == 0 {
			tokens = chunker.CountTokens(p.Passage.Text)
		}
		if tokens > remaining {
			break
		}
		included = append(included, p)
		remaining -= tokens
	}
	logger.Debug("Context assembly: %d of %d passages fit the budget", len(included), len(passages))

	messages := make([]domain.ChatMessage, 0, len(history)+1)
	for _, msg := range a.trimHistory(history) {
		messages = append(messages, domain.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	messages = append(messages, domain.ChatMessage{
		Role:    "user",
		Content: renderUserTurn(question, included),
	})

	return domain.PromptContext{
		System:           a.systemPrompt,
		Messages:         messages,
		IncludedPassages: included,
	}
}

// trimHistory keeps the most recent messages that fit the history
// budget, returned oldest first.
func (a *ContextAssembler) trimHistory(history []domain.Message) []domain.Message {
	remaining := a.historyTokenBudget
	cut := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		tokens := chunker.CountTokens(history[i].Content)
		if tokens > remaining {
			break
		}
		remaining -= tokens
		cut = i
	}
	return history[cut:]
}

// renderUserTurn formats the included passages and the question into
// the final user message.
func renderUserTurn(question string, included []domain.RetrievedPassage) string {
	if len(included) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Document excerpts:\n\n")
	for i, p := range included {
		fmt.Fprintf(&b, "[%d] (pages %d-%d)\n%s\n\n",
			i+1, p.Passage.FirstPage, p.Passage.LastPage, p.Passage.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
