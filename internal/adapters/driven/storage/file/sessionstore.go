// Package file provides file-backed persistence adapters. Each chat
// session is a single JSON document on disk, rewritten whole on every
// append. Unknown session ids are silently ignored on append so that a
// caller holding a stale id (say, after the sessions directory was
// wiped) degrades to a sessionless conversation instead of failing.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore stores one JSON file per session under a directory.
type SessionStore struct {
	dir string
}

// NewSessionStore creates a session store rooted at dir. An empty dir
// defaults to ~/.docqa/sessions.
func NewSessionStore(dir string) (*SessionStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".docqa", "sessions")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sessions directory: %w", err)
	}
	return &SessionStore{dir: dir}, nil
}

// sessionRecord is the on-disk shape of a session.
type sessionRecord struct {
	SessionID string          `json:"session_id"`
	PDFName   string          `json:"pdf_name"`
	CreatedAt string          `json:"created_at"`
	Messages  []messageRecord `json:"messages"`
}

type messageRecord struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Timestamp string   `json:"timestamp"`
	Sources   []string `json:"sources,omitempty"`
}

// CreateSession creates a new session file and returns its id.
func (s *SessionStore) CreateSession(_ context.Context, pdfName string) (string, error) {
	id := uuid.New().String()
	record := sessionRecord{
		SessionID: id,
		PDFName:   pdfName,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Messages:  []messageRecord{},
	}
	if err := s.write(record); err != nil {
		return "", err
	}
	return id, nil
}

// AppendMessage appends an exchange to a session. Unknown ids are a
// silent no-op.
func (s *SessionStore) AppendMessage(_ context.Context, sessionID, question, answer string, sources []string) error {
	record, err := s.read(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	record.Messages = append(record.Messages, messageRecord{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sources:   sources,
	})
	return s.write(record)
}

// GetHistory returns a session's messages in append order. Unknown ids
// return an empty slice.
func (s *SessionStore) GetHistory(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	record, err := s.read(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.ChatMessage{}, nil
		}
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(record.Messages))
	for _, m := range record.Messages {
		messages = append(messages, toDomainMessage(m))
	}
	return messages, nil
}

// ListSessions returns all sessions, most recently created first.
func (s *SessionStore) ListSessions(_ context.Context) ([]domain.ChatSession, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}

	var sessions []domain.ChatSession
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip unreadable or malformed files rather than failing
			// the whole listing.
			continue
		}
		sessions = append(sessions, toDomainSession(record))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *SessionStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func (s *SessionStore) read(sessionID string) (sessionRecord, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		return sessionRecord{}, err
	}
	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return sessionRecord{}, fmt.Errorf("parsing session %s: %w", sessionID, err)
	}
	return record, nil
}

func (s *SessionStore) write(record sessionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", record.SessionID, err)
	}
	if err := os.WriteFile(s.path(record.SessionID), data, 0o644); err != nil {
		return fmt.Errorf("writing session %s: %w", record.SessionID, err)
	}
	return nil
}

func toDomainSession(record sessionRecord) domain.ChatSession {
	session := domain.ChatSession{
		SessionID: record.SessionID,
		PDFName:   record.PDFName,
		CreatedAt: parseTime(record.CreatedAt),
	}
	for _, m := range record.Messages {
		session.Messages = append(session.Messages, toDomainMessage(m))
	}
	return session
}

func toDomainMessage(m messageRecord) domain.ChatMessage {
	return domain.ChatMessage{
		Question:  m.Question,
		Answer:    m.Answer,
		Timestamp: parseTime(m.Timestamp),
		Sources:   m.Sources,
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
