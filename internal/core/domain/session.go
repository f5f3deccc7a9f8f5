package domain

import "time"

// ChatSession is an append-only conversation history. Created once per
// conversation and owned exclusively by the session store; it is mutated
// only by appending messages, never edited or removed.
type ChatSession struct {
	// SessionID uniquely identifies the session.
	SessionID string

	// PDFName is the human-readable label, usually the ingested document
	// name the conversation is about.
	PDFName string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// Messages is the ordered conversation history.
	Messages []ChatMessage
}

// ChatMessage is a single question/answer exchange. Immutable once
// appended.
type ChatMessage struct {
	// Question is the user's question.
	Question string

	// Answer is the synthesized answer.
	Answer string

	// Timestamp is when the exchange was recorded.
	Timestamp time.Time

	// Sources lists the source ids of the contexts the answer drew from,
	// index-aligned with the contexts used.
	Sources []string
}
