package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

func TestEscalationCheckStopsOnHandoffKeyword(t *testing.T) {
	store := convstore.NewMemoryStore()
	session, err := store.GetOrCreate(context.Background(), "+1555", "clinic-1", convstore.ChannelWhatsApp, convstore.Session{})
	require.NoError(t, err)

	step := &EscalationCheckStep{Store: store}
	pc := pipeline.NewContext("corr", "clinic-1", "+1555", convstore.ChannelWhatsApp, "I want to speak to a human")
	pc.Session = session

	cont, err := step.Execute(context.Background(), pc)
	require.NoError(t, err)
	require.False(t, cont)
	require.NotEmpty(t, pc.Response)

	saved, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, convstate.ControlHuman, saved.State.ControlMode)
	require.Equal(t, convstate.FlowEscalated, saved.State.FlowState)
}

func TestEscalationCheckPassesThroughOtherwise(t *testing.T) {
	store := convstore.NewMemoryStore()
	session, err := store.GetOrCreate(context.Background(), "+1555", "clinic-1", convstore.ChannelWhatsApp, convstore.Session{})
	require.NoError(t, err)

	step := &EscalationCheckStep{Store: store}
	pc := pipeline.NewContext("corr", "clinic-1", "+1555", convstore.ChannelWhatsApp, "what are your hours?")
	pc.Session = session

	cont, err := step.Execute(context.Background(), pc)
	require.NoError(t, err)
	require.True(t, cont)
	require.Empty(t, pc.Response)
}
