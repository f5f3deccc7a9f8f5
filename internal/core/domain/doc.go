// Package domain defines the core business entities for docqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A bounded-size text segment produced by splitting a document
//   - VectorRecord: An embedded chunk persisted in the vector store
//   - Run: One execution instance of a workflow
//   - StepRecord: A memoized workflow step output
//   - ChatSession: An append-only conversation history
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
