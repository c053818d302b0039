package steps

import (
	"context"

	"github.com/healthconcierge/wa-concierge/pkg/narrowing"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
)

// NarrowingStep decides the next concrete booking action from the
// session's current constraints. It reads constraints from pc, not the
// store, so a prior step's in-flight change is never silently dropped.
type NarrowingStep struct {
	Service *narrowing.Service
}

func (s *NarrowingStep) Name() string { return "narrowing" }

func (s *NarrowingStep) Execute(ctx context.Context, pc *pipeline.Context) (bool, error) {
	input := narrowing.Input{
		ClinicID:             pc.ClinicID,
		DesiredService:       pc.Constraints.DesiredService,
		DesiredDoctorID:      pc.Constraints.DesiredDoctorID,
		DesiredDoctorName:    pc.Constraints.DesiredDoctor,
		TimeWindow:           pc.Constraints.TimeWindowLabel,
		ExcludedDoctors:      pc.Constraints.ExcludedDoctors,
		Text:                 pc.InboundText,
		ServiceFirstStrategy: true,
	}

	instruction := s.Service.Decide(ctx, input)
	pc.Instruction = &instruction
	return true, nil
}
