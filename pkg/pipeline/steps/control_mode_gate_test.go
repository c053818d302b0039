package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

func TestControlModeGateStopsAndIncrementsUnreadWhenHuman(t *testing.T) {
	store := convstore.NewMemoryStore()
	session, err := store.GetOrCreate(context.Background(), "+1555", "clinic-1", convstore.ChannelWhatsApp, convstore.Session{
		State: convstate.State{ControlMode: convstate.ControlHuman},
	})
	require.NoError(t, err)

	pc := pipeline.NewContext("corr", "clinic-1", "+1555", convstore.ChannelWhatsApp, "still there?")
	pc.Session = session

	step := &ControlModeGateStep{Store: store}
	cont, err := step.Execute(context.Background(), pc)
	require.NoError(t, err)
	require.False(t, cont)
	require.Empty(t, pc.Response)

	saved, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, 1, saved.UnreadForHumanCount)
}

func TestControlModeGatePassesThroughWhenAgent(t *testing.T) {
	store := convstore.NewMemoryStore()
	pc := pipeline.NewContext("corr", "clinic-1", "+1555", convstore.ChannelWhatsApp, "hi")
	pc.Session.State.ControlMode = convstate.ControlAgent

	step := &ControlModeGateStep{Store: store}
	cont, err := step.Execute(context.Background(), pc)
	require.NoError(t, err)
	require.True(t, cont)
}
