package domain

// Chunk represents a bounded-size text segment produced by splitting a
// document. Chunks are transient: they exist only within a single ingest
// run, between extraction and embedding.
type Chunk struct {
	// Text is the chunk content. Never empty.
	Text string

	// Position is the ordinal position within the document. Record ids
	// are derived from (source id, position), so re-ingesting the same
	// source overwrites rather than duplicates.
	Position int
}

// VectorRecord is an embedded chunk as persisted in the vector store.
type VectorRecord struct {
	// ID is the deterministic identifier derived from (source id, chunk
	// position). Writing the same ID twice replaces the prior record.
	ID string

	// Vector is the embedding. All vectors in one store share the same
	// dimension, fixed when the store is initialised.
	Vector []float32

	// Source identifies the document the chunk came from.
	Source string

	// Text is the original chunk content, returned verbatim as query
	// context.
	Text string
}

// VectorHit is a single nearest-neighbour search result. Text and Source
// travel together so context/source lists built from a hit slice stay
// index-aligned.
type VectorHit struct {
	// ID is the matched record id.
	ID string

	// Source identifies the originating document.
	Source string

	// Text is the stored chunk content.
	Text string

	// Similarity is the cosine similarity score (higher is better).
	Similarity float64
}
