package convstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	testutil "github.com/healthconcierge/wa-concierge/test/util"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}

	db := testutil.SetupTestDatabase(t)
	store := convstore.NewPostgresStore(db)
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "+15551234567", "clinic-1", convstore.ChannelWhatsApp, convstore.Session{
		State: convstate.NewState(convstate.EpisodeBooking),
	})
	require.NoError(t, err)
	assert.Equal(t, convstate.FlowCollectingSlots, session.State.FlowState)

	again, err := store.GetOrCreate(ctx, "+15551234567", "clinic-1", convstore.ChannelWhatsApp, convstore.Session{})
	require.NoError(t, err)
	assert.Equal(t, session.ID, again.ID)

	session.Constraints.DesiredService = "cleaning"
	session.Constraints.ExcludeDoctor("doc-9")
	require.NoError(t, store.Save(ctx, session))

	fetched, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "cleaning", fetched.Constraints.DesiredService)
	assert.Equal(t, []string{"doc-9"}, fetched.Constraints.ExcludedDoctors)

	require.NoError(t, store.AppendMessage(ctx, convstore.Message{
		SessionID: session.ID, Role: convstore.RoleUser, Content: "hi there",
	}))
	require.NoError(t, store.AppendMessage(ctx, convstore.Message{
		SessionID: session.ID, Role: convstore.RoleAssistant, Content: "hello!",
	}))

	history, err := store.History(ctx, session.ID, convstore.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi there", history[0].Content)
	assert.Equal(t, "hello!", history[1].Content)
}

func TestPostgresStoreGetMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in -short mode")
	}

	db := testutil.SetupTestDatabase(t)
	store := convstore.NewPostgresStore(db)

	_, err := store.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, convstore.ErrNotFound)
}
