package domain

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message written by the user.
	RoleUser Role = "user"

	// RoleAssistant marks a generated reply.
	RoleAssistant Role = "assistant"
)

// DanglingCitationText replaces the passage text of a citation whose
// passage was deleted after the message referenced it.
const DanglingCitationText = "source no longer available"

// Conversation groups an ordered sequence of messages over one or more
// documents. Messages are append-only and strictly time-ordered.
type Conversation struct {
	// ID is the unique identifier for the conversation.
	ID string

	// DocumentIDs is the retrieval scope. A single document for normal
	// chat, several for cross-document search.
	DocumentIDs []string

	// CreatedAt is when the conversation was created.
	CreatedAt time.Time
}

// Message is a single turn in a conversation. Never mutated once created.
type Message struct {
	// ID is the unique identifier for the message.
	ID string

	// ConversationID links to the owning Conversation.
	ConversationID string

	// Role is the message author.
	Role Role

	// Content is the message text.
	Content string

	// Citations reference the passages that supported an assistant
	// reply. Empty for user messages.
	Citations []Citation

	// Incomplete marks an assistant message whose generation failed
	// mid-stream. Content holds whatever was produced before the
	// failure.
	Incomplete bool

	// CreatedAt orders messages within the conversation.
	CreatedAt time.Time
}

// Citation is a weak reference from a generated answer back to a
// supporting passage. The passage may be deleted later; resolution then
// degrades to DanglingCitationText rather than an error.
type Citation struct {
	// PassageID is the supporting passage.
	PassageID string

	// DocumentID is the passage's owning document.
	DocumentID string

	// FirstPage and LastPage snapshot the page range at citation time so
	// a dangling citation still points somewhere useful.
	FirstPage int
	LastPage  int
}
