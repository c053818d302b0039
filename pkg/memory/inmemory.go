package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemorySummarySearcher is a reference SummarySearcher backed by a
// slice, for tests. Not durable.
type InMemorySummarySearcher struct {
	mu       sync.Mutex
	sessions []storedSummary
}

type storedSummary struct {
	phone, clinicID string
	result          SummaryResult
	closedAt        time.Time
}

// NewInMemorySummarySearcher builds an empty searcher.
func NewInMemorySummarySearcher() *InMemorySummarySearcher {
	return &InMemorySummarySearcher{}
}

// AddSummary seeds a closed session's summary for later search.
func (s *InMemorySummarySearcher) AddSummary(phone, clinicID string, summary SummaryResult, closedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, storedSummary{phone: phone, clinicID: clinicID, result: summary, closedAt: closedAt})
}

// SearchSummaries returns summaries for phone+clinicID within daysBack,
// most recent first, optionally filtered by a case-insensitive substring
// match on the summary text.
func (s *InMemorySummarySearcher) SearchSummaries(ctx context.Context, phone, clinicID, query string, daysBack, limit int) ([]SummaryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -daysBack)
	needle := strings.ToLower(strings.TrimSpace(query))

	var matches []storedSummary
	for _, entry := range s.sessions {
		if entry.phone != phone || entry.clinicID != clinicID {
			continue
		}
		if entry.closedAt.Before(cutoff) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(entry.result.Summary), needle) {
			continue
		}
		matches = append(matches, entry)
	}

	sortSummariesDesc(matches)

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]SummaryResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.result)
	}
	return results, nil
}

func sortSummariesDesc(entries []storedSummary) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].closedAt.After(entries[j-1].closedAt); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// InMemoryHistorySearcher is a reference HistorySearcher backed by a
// slice, for tests.
type InMemoryHistorySearcher struct {
	mu       sync.Mutex
	messages []storedMessage
}

type storedMessage struct {
	phone, clinicID string
	createdAt       time.Time
	msg             HistoryMessage
}

// NewInMemoryHistorySearcher builds an empty searcher.
func NewInMemoryHistorySearcher() *InMemoryHistorySearcher {
	return &InMemoryHistorySearcher{}
}

// AddMessage seeds one message for later full-history search.
func (s *InMemoryHistorySearcher) AddMessage(phone, clinicID string, msg HistoryMessage, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, storedMessage{phone: phone, clinicID: clinicID, msg: msg, createdAt: createdAt})
}

// SearchFullHistory returns a page of messages for phone+clinicID within
// daysBack, filtered by a case-insensitive substring query (an empty
// query matches every message).
func (s *InMemoryHistorySearcher) SearchFullHistory(ctx context.Context, phone, clinicID, query string, daysBack, limit, offset int) (HistorySearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -daysBack)
	needle := strings.ToLower(query)

	var matches []storedMessage
	for _, entry := range s.messages {
		if entry.phone != phone || entry.clinicID != clinicID {
			continue
		}
		if entry.createdAt.Before(cutoff) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(entry.msg.Content), needle) {
			continue
		}
		matches = append(matches, entry)
	}

	total := len(matches)
	if total == 0 {
		return HistorySearchResult{Found: false}, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}
	if offset > total {
		offset = total
	}

	page := make([]HistoryMessage, 0, end-offset)
	for _, m := range matches[offset:end] {
		page = append(page, m.msg)
	}

	return HistorySearchResult{
		Found:    len(page) > 0,
		Messages: page,
		Total:    total,
		HasMore:  end < total,
	}, nil
}

// NoopMemoryAdder discards every write and never returns a summary.
// Useful when memory persistence is disabled but the Writer API still
// needs a concrete MemoryAdder to hand to NewBackgroundWriter.
type NoopMemoryAdder struct{}

// AddMemory implements MemoryAdder as a no-op.
func (NoopMemoryAdder) AddMemory(ctx context.Context, userKey, content string, metadata map[string]any) (AddResult, error) {
	return AddResult{}, nil
}

// RecordingMemoryAdder captures every AddMemory call for assertions in
// tests, optionally returning a summary to exercise the backfill path.
type RecordingMemoryAdder struct {
	mu      sync.Mutex
	Calls   []RecordedAdd
	Summary string
}

// RecordedAdd is one captured AddMemory invocation.
type RecordedAdd struct {
	UserKey  string
	Content  string
	Metadata map[string]any
}

// AddMemory implements MemoryAdder, recording the call.
func (r *RecordingMemoryAdder) AddMemory(ctx context.Context, userKey, content string, metadata map[string]any) (AddResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RecordedAdd{UserKey: userKey, Content: content, Metadata: metadata})
	if r.Summary == "" {
		return AddResult{}, nil
	}
	return AddResult{Summary: r.Summary, MemoryID: "mem-" + userKey}, nil
}

// CallCount returns the number of recorded AddMemory calls so far.
func (r *RecordingMemoryAdder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
