// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: Document and passage persistence
//   - ConversationStore: Conversation and message persistence
//   - ObjectStore: Raw document byte storage
//   - TextExtractor: Page-ordered text extraction
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndexManager: Per-document similarity indexes
//   - LLMService: Streaming answer generation
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or index package
package driven
