// Package services contains the core business logic: the ingestion
// pipeline, the retrieval engine, context assembly, the generation
// orchestrator, and conversation management. Services depend only on
// ports; adapters are wired in by the CLI layer.
package services
