package convstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
)

func TestMemoryStoreGetOrCreateIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	initial := Session{State: convstate.NewState(convstate.EpisodeGreeting)}

	first, err := store.GetOrCreate(ctx, "+15550001", "clinic-1", ChannelWhatsApp, initial)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := store.GetOrCreate(ctx, "+15550001", "clinic-1", ChannelWhatsApp, initial)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestMemoryStoreSaveRequiresExistingSession(t *testing.T) {
	store := NewMemoryStore()
	err := store.Save(context.Background(), Session{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreHistoryRespectsLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "+15550002", "clinic-1", ChannelWhatsApp, Session{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendMessage(ctx, Message{SessionID: session.ID, Role: RoleUser, Content: "hi"}))
	}

	all, err := store.History(ctx, session.ID, HistoryOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	last2, err := store.History(ctx, session.ID, HistoryOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, last2, 2)
}

func TestMemoryStoreCloneIsolatesConstraints(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "+15550003", "clinic-1", ChannelWhatsApp, Session{
		Constraints: Constraints{ExcludedDoctors: []string{"doc-1"}},
	})
	require.NoError(t, err)

	session.Constraints.ExcludedDoctors[0] = "mutated"

	fresh, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", fresh.Constraints.ExcludedDoctors[0])
}
