package convstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowStateFromEpisode(t *testing.T) {
	cases := map[EpisodeType]FlowState{
		EpisodeBooking:     FlowCollectingSlots,
		EpisodeInfoSeeking: FlowInfoSeeking,
		EpisodeGreeting:    FlowGreeting,
		EpisodeEscalation:  FlowEscalated,
		EpisodeGeneral:     FlowIdle,
		EpisodeType("unknown"): FlowIdle,
	}
	for episode, want := range cases {
		assert.Equal(t, want, FlowStateFromEpisode(episode), "episode=%s", episode)
	}
}

func TestTurnStatusFromSessionValue(t *testing.T) {
	assert.Equal(t, TurnResolved, TurnStatusFromSessionValue("resolved"))
	assert.Equal(t, TurnAgentPending, TurnStatusFromSessionValue("agent_action_pending"))
	assert.Equal(t, TurnUser, TurnStatusFromSessionValue("garbage"))
	assert.Equal(t, TurnUser, TurnStatusFromSessionValue(""))
}

func TestStateIsTerminal(t *testing.T) {
	for _, fs := range []FlowState{FlowCompleted, FlowFailed, FlowEscalated} {
		assert.True(t, State{FlowState: fs}.IsTerminal(), "flow=%s", fs)
	}
	assert.False(t, State{FlowState: FlowIdle}.IsTerminal())
}

func TestStateIsBookingFlow(t *testing.T) {
	booking := []FlowState{
		FlowCollectingSlots, FlowPresentingSlots, FlowAwaitingClarification,
		FlowAwaitingConfirmation, FlowDisambiguating, FlowBooking,
	}
	for _, fs := range booking {
		assert.True(t, State{FlowState: fs}.IsBookingFlow(), "flow=%s", fs)
	}
	assert.False(t, State{FlowState: FlowIdle}.IsBookingFlow())
	assert.False(t, State{FlowState: FlowEscalated}.IsBookingFlow())
}

func TestNewState(t *testing.T) {
	s := NewState(EpisodeBooking)
	assert.Equal(t, FlowCollectingSlots, s.FlowState)
	assert.Equal(t, TurnUser, s.TurnStatus)
	assert.Equal(t, PendingActionNone, s.PendingAction)
	assert.Equal(t, ControlAgent, s.ControlMode)
	assert.Nil(t, s.PendingSince)
}

func TestBookingLaneAllowed(t *testing.T) {
	allowed := []FlowState{FlowIdle, FlowCollectingSlots, FlowPresentingSlots, FlowAwaitingConfirmation, FlowBooking}
	for _, fs := range allowed {
		assert.True(t, State{FlowState: fs}.BookingLaneAllowed(), "flow=%s", fs)
	}
	assert.False(t, State{FlowState: FlowEscalated}.BookingLaneAllowed())
}
