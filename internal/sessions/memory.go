package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/pkg/models"
)

// maxMessagesPerSession limits mirrored messages per session to prevent
// unbounded memory growth. Oldest messages are trimmed past the limit.
const maxMessagesPerSession = 1000

// MemoryStore provides an in-memory Store implementation for testing and
// local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	messages map[string][]*models.ChatMessage
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*models.Session{},
		messages: map[string][]*models.ChatMessage{},
	}
}

func (m *MemoryStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *session
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	clone.UpdatedAt = clone.CreatedAt

	if clone.Active {
		for _, existing := range m.sessions {
			if existing.UserID == clone.UserID && existing.Active {
				existing.Active = false
				existing.UpdatedAt = time.Now()
			}
		}
	}

	// Reflect generated fields back to caller.
	session.ID = clone.ID
	session.CreatedAt = clone.CreatedAt
	session.UpdatedAt = clone.UpdatedAt
	m.sessions[clone.ID] = &clone
	return nil
}

func (m *MemoryStore) GetActive(ctx context.Context, userID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, session := range m.sessions {
		if session.UserID == userID && session.Active {
			clone := *session
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Deactivate(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if session.Active {
		session.Active = false
		session.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg == nil {
		return errors.New("message is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[msg.SessionID]; !ok {
		return ErrNotFound
	}
	clone := *msg
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	if len(msg.Attachments) > 0 {
		clone.Attachments = append([]models.Attachment{}, msg.Attachments...)
	}
	msg.ID = clone.ID
	msg.CreatedAt = clone.CreatedAt

	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &clone)
	if len(m.messages[msg.SessionID]) > maxMessagesPerSession {
		excess := len(m.messages[msg.SessionID]) - maxMessagesPerSession
		m.messages[msg.SessionID] = m.messages[msg.SessionID][excess:]
	}
	return nil
}

func (m *MemoryStore) Messages(ctx context.Context, sessionID string, limit int) ([]*models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := m.messages[sessionID]
	if len(messages) == 0 {
		return []*models.ChatMessage{}, nil
	}
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]*models.ChatMessage, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		clone := *msg
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MemoryStore) PurgeMessages(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, sessionID)
	return nil
}
