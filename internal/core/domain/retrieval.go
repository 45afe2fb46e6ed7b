package domain

// RetrievedPassage is a single ranked retrieval hit. Ephemeral: produced
// per query and consumed immediately by the context assembler, never
// persisted.
type RetrievedPassage struct {
	// Passage is the matched passage.
	Passage Passage

	// Score is the similarity score under the index metric.
	Score float64

	// DocumentID is the owning document.
	DocumentID string
}

// RetrievalOptions configures a retrieval request.
type RetrievalOptions struct {
	// TopK is the maximum number of passages to return. Must be >= 1.
	TopK int

	// Dedup drops near-duplicate passages from the result to avoid
	// redundant context.
	Dedup bool

	// DedupThreshold is the token-set similarity above which two
	// passages count as duplicates. Only used when Dedup is set.
	DedupThreshold float64
}

// PromptContext is the assembled, token-bounded input for generation.
// Given identical inputs and budgets, assembly output is identical.
type PromptContext struct {
	// System is the system prompt.
	System string

	// Messages is the conversation history plus the context-bearing
	// user turn, oldest first.
	Messages []ChatMessage

	// IncludedPassages are the passages that actually fit the budget,
	// in inclusion order. Citations are built from these.
	IncludedPassages []RetrievedPassage
}

// ChatMessage is a single prompt message handed to the generation
// service.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}
