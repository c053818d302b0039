package steps

import (
	"context"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

// ControlModeGateStep stops the pipeline before the agent ever sees the
// message, when a session has been taken over or paused by a human
// operator. SessionManagement has already persisted the inbound message
// (tagged pending_human_review, since it read the same control mode);
// this step only bumps the operator's unread counter.
type ControlModeGateStep struct {
	Store convstore.ConversationStore
}

func (s *ControlModeGateStep) Name() string { return "control_mode_gate" }

func (s *ControlModeGateStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	mode := pc.Session.State.ControlMode
	if mode != convstate.ControlHuman && mode != convstate.ControlPaused {
		return true, nil
	}

	pc.Session.UnreadForHumanCount++
	if err := s.Store.Save(ctx, pc.Session); err != nil {
		return false, err
	}

	pc.Response = ""
	return false, nil
}
