// Package memory provides the conversation-memory subsystem: a bounded
// background writer that offloads slow memory-store writes from the hot
// path, plus read-side search over session summaries and full message
// history. No vector-store client is implemented here — writes go
// through an injected MemoryAdder, leaving the actual mem0/Qdrant
// integration out of scope.
package memory

import "context"

// JobType identifies the kind of work queued to the background writer.
type JobType string

const (
	JobMessage JobType = "message"
	JobTurn    JobType = "turn"
	JobWarmup  JobType = "warmup"
)

// Job is one unit of background memory work.
type Job struct {
	Type JobType

	Phone    string
	ClinicID string
	Content  string
	Metadata map[string]any

	MessageID          string
	SessionUUID        string
	ExternalSessionID  string
	Role               string

	// Force re-runs a warmup job even if this clinic was already warmed
	// up once this process lifetime.
	Force bool
}

// MemoryAdder persists one piece of conversation content against a
// memory-store user key. This module ships no mem0/Qdrant client: the
// implementations are NoopMemoryAdder (wired by cmd/concierge) and
// RecordingMemoryAdder (tests).
type MemoryAdder interface {
	AddMemory(ctx context.Context, userKey, content string, metadata map[string]any) (AddResult, error)
}

// AddResult is what the memory store handed back for a write, if
// anything worth persisting alongside the source message.
type AddResult struct {
	Summary  string
	MemoryID string
}

// SummaryResult is one matched prior session summary.
type SummaryResult struct {
	SessionID string
	Summary   string
	Date      string
	Metadata  map[string]any
}

// SummarySearcher looks up previous session summaries for a contact,
// optionally filtered by a free-text query.
type SummarySearcher interface {
	SearchSummaries(ctx context.Context, phone, clinicID, query string, daysBack, limit int) ([]SummaryResult, error)
}

// HistoryMessage is one matched message from a deep history search.
type HistoryMessage struct {
	ID        string
	Role      string
	Content   string
	CreatedAt string
	SessionID string
}

// HistorySearchResult is a page of a deep history search.
type HistorySearchResult struct {
	Found    bool
	Messages []HistoryMessage
	Total    int
	HasMore  bool
}

// HistorySearcher performs a deeper, paginated search across full
// message history, not just summaries.
type HistorySearcher interface {
	SearchFullHistory(ctx context.Context, phone, clinicID, query string, daysBack, limit, offset int) (HistorySearchResult, error)
}

// Writer accepts fire-and-forget memory jobs without blocking the
// caller's hot path.
type Writer interface {
	EnqueueMessage(phone, clinicID, content string, messageID, sessionUUID, externalSessionID, role string, metadata map[string]any) bool
	EnqueueTurn(phone, clinicID, content string, metadata map[string]any) bool
	ScheduleWarmup(clinicID, phone string, force bool) bool
	Close()
}
