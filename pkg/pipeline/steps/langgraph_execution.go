package steps

import (
	"context"

	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

// LangGraphResult is what an external orchestrator hands back for one
// turn. An empty Reply means "no opinion, fall through to LLMGeneration".
type LangGraphResult struct {
	Reply string
}

// ExternalOrchestrator is the boundary to an out-of-process graph-based
// orchestration engine for lanes complex enough to warrant one. No
// concrete implementation ships here; wiring one in is an operational
// decision per clinic, gated by LangGraphLanes.
type ExternalOrchestrator interface {
	Handle(ctx context.Context, pc *pipeline.Context) (LangGraphResult, error)
}

// LangGraphExecutionStep hands a turn to an external orchestrator when
// the feature is enabled for the turn's lane, falling through to normal
// LLM generation on any error or an empty reply.
type LangGraphExecutionStep struct {
	Enabled      bool
	Lanes        map[string]bool
	Orchestrator ExternalOrchestrator
}

func (s *LangGraphExecutionStep) Name() string { return "langgraph_execution" }

func (s *LangGraphExecutionStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	if !s.Enabled || s.Orchestrator == nil {
		return true, nil
	}
	if !s.Lanes[pc.Lane] {
		return true, nil
	}

	result, err := s.Orchestrator.Handle(ctx, pc)
	if err != nil {
		return true, nil
	}
	if result.Reply == "" {
		return true, nil
	}

	pc.Response = result.Reply
	return false, nil
}
