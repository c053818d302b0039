package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemorySummarySearcherFiltersByClinicAndQuery(t *testing.T) {
	s := NewInMemorySummarySearcher()
	now := time.Now()
	s.AddSummary("155", "clinic-1", SummaryResult{SessionID: "s1", Summary: "discussed teeth whitening"}, now.AddDate(0, 0, -1))
	s.AddSummary("155", "clinic-1", SummaryResult{SessionID: "s2", Summary: "booked a cleaning"}, now.AddDate(0, 0, -2))
	s.AddSummary("155", "clinic-2", SummaryResult{SessionID: "s3", Summary: "discussed teeth whitening"}, now.AddDate(0, 0, -1))

	results, err := s.SearchSummaries(context.Background(), "155", "clinic-1", "whitening", 90, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "s1", results[0].SessionID)
}

func TestInMemorySummarySearcherOrdersMostRecentFirst(t *testing.T) {
	s := NewInMemorySummarySearcher()
	now := time.Now()
	s.AddSummary("155", "clinic-1", SummaryResult{SessionID: "older"}, now.AddDate(0, 0, -10))
	s.AddSummary("155", "clinic-1", SummaryResult{SessionID: "newer"}, now.AddDate(0, 0, -1))

	results, err := s.SearchSummaries(context.Background(), "155", "clinic-1", "", 90, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "newer", results[0].SessionID)
	require.Equal(t, "older", results[1].SessionID)
}

func TestInMemorySummarySearcherExcludesOutOfWindow(t *testing.T) {
	s := NewInMemorySummarySearcher()
	s.AddSummary("155", "clinic-1", SummaryResult{SessionID: "stale"}, time.Now().AddDate(0, 0, -200))

	results, err := s.SearchSummaries(context.Background(), "155", "clinic-1", "", 90, 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestInMemoryHistorySearcherPaginates(t *testing.T) {
	s := NewInMemoryHistorySearcher()
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.AddMessage("155", "clinic-1", HistoryMessage{ID: string(rune('a' + i)), Content: "about pricing"}, now)
	}

	page1, err := s.SearchFullHistory(context.Background(), "155", "clinic-1", "pricing", 90, 2, 0)
	require.NoError(t, err)
	require.True(t, page1.Found)
	require.Equal(t, 5, page1.Total)
	require.True(t, page1.HasMore)
	require.Len(t, page1.Messages, 2)

	page3, err := s.SearchFullHistory(context.Background(), "155", "clinic-1", "pricing", 90, 2, 4)
	require.NoError(t, err)
	require.False(t, page3.HasMore)
	require.Len(t, page3.Messages, 1)
}

func TestInMemoryHistorySearcherNotFoundWhenNoMatch(t *testing.T) {
	s := NewInMemoryHistorySearcher()
	s.AddMessage("155", "clinic-1", HistoryMessage{ID: "a", Content: "hello"}, time.Now())

	result, err := s.SearchFullHistory(context.Background(), "155", "clinic-1", "unrelated", 90, 10, 0)
	require.NoError(t, err)
	require.False(t, result.Found)
}
