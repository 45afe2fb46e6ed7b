package domain

// GenerationState tracks a query through the generation orchestrator.
type GenerationState string

const (
	// GenIdle is the initial state before a query arrives.
	GenIdle GenerationState = "idle"

	// GenContextBuilding means retrieval and context assembly are running.
	GenContextBuilding GenerationState = "context_building"

	// GenGenerating means fragments are streaming from the model.
	GenGenerating GenerationState = "generating"

	// GenCompleted means the stream ended normally.
	GenCompleted GenerationState = "completed"

	// GenFailed means the upstream service errored mid-stream.
	GenFailed GenerationState = "failed"

	// GenCancelled means the caller disconnected or cancelled.
	GenCancelled GenerationState = "cancelled"
)

// StreamEvent is one element of a streamed answer. Fragments arrive as
// the model produces them; exactly one terminal event follows, carrying
// either the citation list or an error. The channel closes after the
// terminal event, never silently.
type StreamEvent struct {
	// Fragment is a piece of answer text. Empty on the terminal event.
	Fragment string

	// Done marks the terminal event.
	Done bool

	// Citations lists the passages actually used in context. Set on a
	// successful terminal event.
	Citations []Citation

	// Err is set on a failed terminal event. Fragments already emitted
	// are not retracted.
	Err error
}
