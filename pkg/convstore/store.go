package convstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session lookup matches no record.
var ErrNotFound = errors.New("convstore: session not found")

// HistoryOptions bounds a history read.
type HistoryOptions struct {
	Limit int
	// IncludeAllSessions pulls history across every session this patient
	// has had at the clinic, not just the current one, for long-term
	// context across re-opened conversations.
	IncludeAllSessions bool
}

// ConversationStore is the persistence boundary for conversation sessions
// and their message history. Implementations must serialize concurrent
// writes to the same session ID; callers do not hold an external lock.
//
// GetOrCreate must be atomic (a single round-trip or a server-side upsert)
// so that concurrent first-contact from the same patient never creates two
// sessions.
type ConversationStore interface {
	// GetOrCreate returns the session for (phone, clinicID, channel),
	// creating one with the given initial state if none exists yet.
	GetOrCreate(ctx context.Context, phone, clinicID string, channel Channel, initial Session) (Session, error)

	// Get returns the session by ID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (Session, error)

	// Save persists the full session record, overwriting prior state.
	Save(ctx context.Context, session Session) error

	// AppendMessage records a new message in the session's history.
	// Callers treat this as fire-and-forget: a slow or failing store must
	// not block reply delivery.
	AppendMessage(ctx context.Context, msg Message) error

	// History returns messages for a session (or all of a patient's
	// sessions, per opts), oldest first.
	History(ctx context.Context, sessionID string, opts HistoryOptions) ([]Message, error)

	// Close releases any resources held by the store.
	Close() error
}
