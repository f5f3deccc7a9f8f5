package driven

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// SessionStore persists chat sessions, one durable record per session.
// Writes are whole-record rewrites, so two concurrent appenders to the
// same session can lose updates; callers serialize appends per session
// (one active conversation per session at a time).
type SessionStore interface {
	// CreateSession creates a new session labelled with the document
	// name and returns its id.
	CreateSession(ctx context.Context, pdfName string) (string, error)

	// AppendMessage appends a question/answer exchange to a session.
	// Appending to an unknown session id is a silent no-op, not an
	// error. That quirk is part of the contract; see the package
	// documentation before changing it.
	AppendMessage(ctx context.Context, sessionID, question, answer string, sources []string) error

	// GetHistory returns a session's messages in append order.
	// An unknown session id returns an empty slice.
	GetHistory(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)

	// ListSessions returns all sessions ordered by creation time, most
	// recent first.
	ListSessions(ctx context.Context) ([]domain.ChatSession, error)
}
