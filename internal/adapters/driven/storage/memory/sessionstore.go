package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore is an in-memory implementation of driven.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.ChatSession
}

// NewSessionStore creates an in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.ChatSession),
	}
}

// CreateSession creates a new session and returns its id.
func (s *SessionStore) CreateSession(_ context.Context, pdfName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.sessions[id] = domain.ChatSession{
		SessionID: id,
		PDFName:   pdfName,
		CreatedAt: time.Now(),
	}
	return id, nil
}

// AppendMessage appends an exchange to a session. Unknown session ids
// are ignored, matching the session store contract.
func (s *SessionStore) AppendMessage(_ context.Context, sessionID, question, answer string, sources []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}

	session.Messages = append(session.Messages, domain.ChatMessage{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now(),
		Sources:   sources,
	})
	s.sessions[sessionID] = session
	return nil
}

// GetHistory returns a session's messages in append order.
func (s *SessionStore) GetHistory(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	messages := make([]domain.ChatMessage, len(session.Messages))
	copy(messages, session.Messages)
	return messages, nil
}

// ListSessions returns all sessions, most recent first.
func (s *SessionStore) ListSessions(_ context.Context) ([]domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]domain.ChatSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}
