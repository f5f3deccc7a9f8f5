// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - TextExtractor: Extracts plain text from an uploaded document
//   - EmbeddingService: Maps text to fixed-dimension vectors
//   - VectorStore: Persists vectors and answers nearest-neighbour queries
//   - RunStore: Durable run and step-memo ledger for the workflow engine
//   - SessionStore: Append-only per-conversation persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - LLMService: Text generation for answer synthesis. When it is
//     unreachable the synthesizer degrades to a fixed apology answer
//     instead of failing the run.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
