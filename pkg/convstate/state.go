// Package convstate models conversation progress as two orthogonal enums:
// the workflow a session is in (FlowState) and the status of its current
// turn (TurnStatus), plus the control-mode gate that routes a session
// between the agent and a human operator.
package convstate

import "time"

// FlowState describes which workflow a conversation session is currently in.
type FlowState string

const (
	FlowIdle                  FlowState = "idle"
	FlowInfoSeeking           FlowState = "info_seeking"
	FlowGreeting              FlowState = "greeting"
	FlowCollectingSlots       FlowState = "collecting_slots"
	FlowPresentingSlots       FlowState = "presenting_slots"
	FlowAwaitingClarification FlowState = "awaiting_clarification"
	FlowAwaitingConfirmation  FlowState = "awaiting_confirmation"
	FlowDisambiguating        FlowState = "disambiguating"
	FlowBooking               FlowState = "booking"
	FlowCompleted             FlowState = "completed"
	FlowFailed                FlowState = "failed"
	FlowEscalated             FlowState = "escalated"
)

// EpisodeType classifies the high-level purpose of a conversation episode,
// as handed to the system by upstream session bookkeeping.
type EpisodeType string

const (
	EpisodeBooking     EpisodeType = "booking"
	EpisodeInfoSeeking EpisodeType = "info_seeking"
	EpisodeGeneral     EpisodeType = "general"
	EpisodeGreeting    EpisodeType = "greeting"
	EpisodeEscalation  EpisodeType = "escalation"
)

// FlowStateFromEpisode derives an initial FlowState from an episode type,
// used when a new conversation session is created with no prior state.
func FlowStateFromEpisode(episode EpisodeType) FlowState {
	switch episode {
	case EpisodeBooking:
		return FlowCollectingSlots
	case EpisodeInfoSeeking:
		return FlowInfoSeeking
	case EpisodeGreeting:
		return FlowGreeting
	case EpisodeEscalation:
		return FlowEscalated
	default:
		return FlowIdle
	}
}

// TurnStatus describes where the current turn sits in the user/agent
// back-and-forth.
type TurnStatus string

const (
	TurnUser           TurnStatus = "user_turn"
	TurnAgentPending   TurnStatus = "agent_action_pending"
	TurnAgent          TurnStatus = "agent_turn"
	TurnResolved       TurnStatus = "resolved"
	TurnEscalated      TurnStatus = "escalated"
)

// TurnStatusFromSessionValue maps a loosely-typed upstream session status
// string onto a TurnStatus, defaulting to TurnUser for anything unknown.
func TurnStatusFromSessionValue(value string) TurnStatus {
	switch TurnStatus(value) {
	case TurnUser, TurnAgentPending, TurnAgent, TurnResolved, TurnEscalated:
		return TurnStatus(value)
	default:
		return TurnUser
	}
}

// ControlMode gates whether inbound messages reach the agent at all.
type ControlMode string

const (
	ControlAgent  ControlMode = "agent"
	ControlHuman  ControlMode = "human"
	ControlPaused ControlMode = "paused"
)

// PendingAction is a free-text description of an outstanding promise the
// assistant made (e.g. "let me check with the front desk"), used to resume
// a flow after a background scheduler re-wakes the conversation.
type PendingAction string

const PendingActionNone PendingAction = ""

// State is the full conversation-progress record tracked per session.
type State struct {
	FlowState     FlowState
	TurnStatus    TurnStatus
	PendingAction PendingAction
	PendingSince  *time.Time
	EpisodeType   EpisodeType
	ControlMode   ControlMode
}

// NewState builds the initial State for a freshly created session.
func NewState(episode EpisodeType) State {
	return State{
		FlowState:     FlowStateFromEpisode(episode),
		TurnStatus:    TurnUser,
		PendingAction: PendingActionNone,
		EpisodeType:   episode,
		ControlMode:   ControlAgent,
	}
}

// IsTerminal reports whether the flow has reached a state the pipeline
// will not advance out of without external intervention.
func (s State) IsTerminal() bool {
	switch s.FlowState {
	case FlowCompleted, FlowFailed, FlowEscalated:
		return true
	default:
		return false
	}
}

// IsBookingFlow reports whether the session is anywhere inside the
// multi-turn appointment-booking workflow.
func (s State) IsBookingFlow() bool {
	switch s.FlowState {
	case FlowCollectingSlots, FlowPresentingSlots, FlowAwaitingClarification,
		FlowAwaitingConfirmation, FlowDisambiguating, FlowBooking:
		return true
	default:
		return false
	}
}

// BookingLaneAllowed reports whether booking-lane pipeline steps may run
// given the current flow state.
func (s State) BookingLaneAllowed() bool {
	switch s.FlowState {
	case FlowIdle, FlowCollectingSlots, FlowPresentingSlots, FlowAwaitingConfirmation, FlowBooking:
		return true
	default:
		return false
	}
}
