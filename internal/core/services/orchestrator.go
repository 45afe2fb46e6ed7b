package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docsage-labs/docsage-cli/internal/core/domain"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driven"
	"github.com/docsage-labs/docsage-cli/internal/core/ports/driving"
	"github.com/docsage-labs/docsage-cli/internal/logger"
)

// NoRelevantPassagesReply is the fixed answer when retrieval finds
// nothing relevant; the generation service is not called at all.
const NoRelevantPassagesReply = "I could not find anything relevant to that question in the selected documents."

// Ensure QueryOrchestrator implements the interface.
var _ driving.QueryService = (*QueryOrchestrator)(nil)

// QueryOrchestrator runs the retrieval-augmented answer loop: retrieve,
// assemble, stream generation, persist the outcome. One query per
// conversation at a time; a second concurrent Ask fails with
// domain.ErrBusy.
type QueryOrchestrator struct {
	convs     driven.ConversationStore
	retrieval *RetrievalEngine
	assembler *ContextAssembler
	llm       driven.LLMService
	opts      QueryOptions

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// QueryOptions configures retrieval and generation per query.
type QueryOptions struct {
	// TopK is how many passages retrieval returns (default 5).
	TopK int

	// Dedup enables near-duplicate passage removal.
	Dedup bool

	// DedupThreshold is the similarity above which passages are
	// considered duplicates (default 0.95).
	DedupThreshold float64

	// MaxTokens caps the generated answer length.
	MaxTokens int

	// Temperature controls generation randomness.
	Temperature float64
}

// NewQueryOrchestrator creates a query orchestrator.
func NewQueryOrchestrator(
	convs driven.ConversationStore,
	retrieval *RetrievalEngine,
	assembler *ContextAssembler,
	llm driven.LLMService,
	opts QueryOptions,
) *QueryOrchestrator {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.DedupThreshold <= 0 {
		opts.DedupThreshold = 0.95
	}
	return &QueryOrchestrator{
		convs:     convs,
		retrieval: retrieval,
		assembler: assembler,
		llm:       llm,
		opts:      opts,
		inFlight:  make(map[string]struct{}),
	}
}

// Ask streams a grounded answer to the question. The returned channel
// delivers answer fragments followed by exactly one terminal event
// carrying either citations or an error, then closes.
func (o *QueryOrchestrator) Ask(ctx context.Context, conversationID, question string) (<-chan domain.StreamEvent, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidArgument)
	}

	conv, err := o.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	if err := o.acquire(conversationID); err != nil {
		return nil, err
	}

	history, err := o.convs.GetMessages(ctx, conversationID)
	if err != nil {
		o.release(conversationID)
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// The user turn is appended before generation starts so the
	// append-only history records the question even if generation fails.
	userMsg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           domain.RoleUser,
		Content:        question,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.convs.AppendMessage(ctx, userMsg); err != nil {
		o.release(conversationID)
		return nil, fmt.Errorf("recording question: %w", err)
	}

	out := make(chan domain.StreamEvent)
	go o.run(ctx, conv, question, history, out)
	return out, nil
}

// run drives one query through its states and closes out afterwards.
func (o *QueryOrchestrator) run(
	ctx context.Context,
	conv *domain.Conversation,
	question string,
	history []domain.Message,
	out chan<- domain.StreamEvent,
) {
	defer close(out)
	defer o.release(conv.ID)

	state := domain.GenContextBuilding
	logger.Debug("Query on conversation %s: state %s", conv.ID, state)

	passages, err := o.retrieval.Retrieve(ctx, conv.DocumentIDs, question, domain.RetrievalOptions{
		TopK:           o.opts.TopK,
		Dedup:          o.opts.Dedup,
		DedupThreshold: o.opts.DedupThreshold,
	})
	if err != nil {
		o.terminate(ctx, out, domain.StreamEvent{Err: err})
		return
	}

	if len(passages) == 0 {
		// Nothing to ground an answer in; reply without the model.
		o.emit(ctx, out, domain.StreamEvent{Fragment: NoRelevantPassagesReply})
		o.appendAssistant(ctx, conv.ID, NoRelevantPassagesReply, nil, false)
		o.terminate(ctx, out, domain.StreamEvent{Done: true})
		return
	}

	prompt := o.assembler.Assemble(question, history, passages)
	prompt.Messages = append([]domain.ChatMessage{
		{Role: "system", Content: prompt.System},
	}, prompt.Messages...)

	state = domain.GenGenerating
	logger.Debug("Query on conversation %s: state %s (%d passages in context)",
		conv.ID, state, len(prompt.IncludedPassages))

	deltas, err := o.llm.GenerateStream(ctx, prompt.Messages, driven.GenerateOptions{
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	})
	if err != nil {
		o.terminate(ctx, out, domain.StreamEvent{Err: err})
		return
	}

	var answer strings.Builder
	for delta := range deltas {
		if delta.Err != nil {
			state = domain.GenFailed
			if ctx.Err() != nil {
				state = domain.GenCancelled
			}
			logger.Debug("Query on conversation %s: state %s", conv.ID, state)
			// Partial output is preserved, flagged incomplete.
			if answer.Len() > 0 {
				o.appendAssistant(ctx, conv.ID, answer.String(), nil, true)
			}
			o.terminate(ctx, out, domain.StreamEvent{Err: delta.Err})
			return
		}
		if delta.Done {
			break
		}
		answer.WriteString(delta.Text)
		o.emit(ctx, out, domain.StreamEvent{Fragment: delta.Text})
	}

	state = domain.GenCompleted
	logger.Debug("Query on conversation %s: state %s", conv.ID, state)

	citations := citationsFor(prompt.IncludedPassages)
	o.appendAssistant(ctx, conv.ID, answer.String(), citations, false)
	o.terminate(ctx, out, domain.StreamEvent{Done: true, Citations: citations})
}

// appendAssistant persists a generated reply. Persistence failures are
// logged, not surfaced; the caller already has the streamed text.
func (o *QueryOrchestrator) appendAssistant(ctx context.Context, conversationID, content string, citations []domain.Citation, incomplete bool) {
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        content,
		Citations:      citations,
		Incomplete:     incomplete,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.convs.AppendMessage(context.WithoutCancel(ctx), msg); err != nil {
		logger.Warn("Failed to persist assistant message on conversation %s: %v", conversationID, err)
	}
}

func (o *QueryOrchestrator) emit(ctx context.Context, out chan<- domain.StreamEvent, ev domain.StreamEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

// terminate sends the single terminal event.
func (o *QueryOrchestrator) terminate(ctx context.Context, out chan<- domain.StreamEvent, ev domain.StreamEvent) {
	ev.Done = ev.Err == nil
	o.emit(ctx, out, ev)
}

func (o *QueryOrchestrator) acquire(conversationID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[conversationID]; busy {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrBusy)
	}
	o.inFlight[conversationID] = struct{}{}
	return nil
}

func (o *QueryOrchestrator) release(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, conversationID)
}

// citationsFor snapshots the included passages as citations.
func citationsFor(included []domain.RetrievedPassage) []domain.Citation {
	if len(included) == 0 {
		return nil
	}
	citations := make([]domain.Citation, len(included))
	for i, p := range included {
		citations[i] = domain.Citation{
			PassageID:  p.Passage.ID,
			DocumentID: p.DocumentID,
			FirstPage:  p.Passage.FirstPage,
			LastPage:   p.Passage.LastPage,
		}
	}
	return citations
}
