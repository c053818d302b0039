package convstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process ConversationStore, used in tests and for
// local development. It is safe for concurrent use.
//
// It keeps at most one session per (clinicID, phone): there is no archival
// of completed sessions, so HistoryOptions.IncludeAllSessions has no extra
// effect here (there is only ever one session to include).
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	byPhone  map[string]string // clinicID|phone -> sessionID
	history  map[string][]Message
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		byPhone:  make(map[string]string),
		history:  make(map[string][]Message),
	}
}

func phoneKey(clinicID, phone string) string {
	return clinicID + "|" + phone
}

// GetOrCreate implements ConversationStore.
func (m *MemoryStore) GetOrCreate(_ context.Context, phone, clinicID string, channel Channel, initial Session) (Session, error) {
	key := phoneKey(clinicID, phone)

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPhone[key]; ok {
		return m.sessions[id].Clone(), nil
	}

	now := time.Now()
	session := initial
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.ClinicID = clinicID
	session.UserIdentifier = phone
	session.Channel = channel
	session.CreatedAt = now
	session.UpdatedAt = now

	m.sessions[session.ID] = session
	m.byPhone[key] = session.ID

	return session.Clone(), nil
}

// Get implements ConversationStore.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session.Clone(), nil
}

// Save implements ConversationStore.
func (m *MemoryStore) Save(_ context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	session.UpdatedAt = time.Now()
	m.sessions[session.ID] = session.Clone()
	return nil
}

// AppendMessage implements ConversationStore.
func (m *MemoryStore) AppendMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[msg.SessionID]; !ok {
		return ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.history[msg.SessionID] = append(m.history[msg.SessionID], msg)
	return nil
}

// History implements ConversationStore.
func (m *MemoryStore) History(_ context.Context, sessionID string, opts HistoryOptions) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.history[sessionID]
	if opts.Limit <= 0 || opts.Limit >= len(all) {
		out := make([]Message, len(all))
		copy(out, all)
		return out, nil
	}
	start := len(all) - opts.Limit
	out := make([]Message, opts.Limit)
	copy(out, all[start:])
	return out, nil
}

// Close implements ConversationStore.
func (m *MemoryStore) Close() error {
	return nil
}
