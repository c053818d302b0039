// Package pipeline runs one conversation turn through a fixed, ordered
// list of steps, timing each one and converting any step failure into a
// localized, user-safe reply instead of letting it reach the patient.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/healthconcierge/wa-concierge/pkg/clinic"
	"github.com/healthconcierge/wa-concierge/pkg/convstate"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/fallback"
	"github.com/healthconcierge/wa-concierge/pkg/narrowing"
)

// StepError is a named error raised by a step, carrying a snapshot of the
// context captured before the step ran so it can be logged for
// debugging even though the step itself may have since mutated ctx.
type StepError struct {
	Step     string
	Err      error
	Snapshot Context
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Context carries everything a step may read or write during one turn.
// Steps communicate by mutating shared fields rather than return values,
// matching the stepwise-accumulation style the rest of this turn's
// processing already uses.
type Context struct {
	CorrelationID  string
	OrganizationID string // raw tenant identifier from the inbound webhook, before org→clinic resolution
	ClinicID       string
	Phone          string
	Channel        convstore.Channel
	InboundText    string

	Session convstore.Session

	DetectedLanguage string
	Lane             string // FAQ, PRICE, SERVICE_INFO, SCHEDULING, COMPLEX
	Intent           string

	Clinic       clinic.Clinic
	Patient      *clinic.Patient
	PatientName  string
	FAQs         []clinic.FAQ
	History      []convstore.Message

	Constraints        convstore.Constraints
	ConstraintsChanged bool
	MetaReset          bool

	Instruction *narrowing.Instruction

	AdditionalContext      string
	ConversationSummary    string
	PreviousSessionSummary string

	Response         string
	ResponseMetadata map[string]any

	StepTimings map[string]time.Duration

	Stopped     bool
	Error       error
	FailedStep  string
}

// NewContext returns a Context with its maps initialized.
func NewContext(correlationID, clinicID, phone string, channel convstore.Channel, text string) *Context {
	return &Context{
		CorrelationID:    correlationID,
		ClinicID:         clinicID,
		Phone:            phone,
		Channel:          channel,
		InboundText:      text,
		ResponseMetadata: make(map[string]any),
		StepTimings:      make(map[string]time.Duration),
	}
}

// Snapshot returns a shallow copy of ctx suitable for logging alongside a
// step failure — taken BEFORE the failing step ran.
func (c Context) Snapshot() Context {
	return c
}

// Step is one stage of turn processing. should_continue=false stops the
// pipeline; the context's Response at that point is the final reply.
type Step interface {
	Name() string
	Execute(ctx context.Context, pc *Context) (bool, error)
}

// Orchestrator runs an ordered list of steps over a Context.
type Orchestrator struct {
	steps  []Step
	logger *slog.Logger
}

// New builds an Orchestrator that runs steps in order.
func New(logger *slog.Logger, steps ...Step) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{steps: steps, logger: logger}
}

// Execute runs every step against pc until one stops the pipeline, fails,
// or the list is exhausted. Step failures never propagate to the
// caller — pc.Response is always populated with something safe to send.
func (o *Orchestrator) Execute(ctx context.Context, pc *Context) *Context {
	totalStart := time.Now()

	for _, step := range o.steps {
		stepStart := time.Now()
		snapshot := pc.Snapshot()

		shouldContinue, err := o.runStep(ctx, step, pc)
		pc.StepTimings[step.Name()] = time.Since(stepStart)

		if err != nil {
			o.logger.Error("pipeline step failed",
				"step", step.Name(),
				"correlation_id", pc.CorrelationID,
				"duration_ms", time.Since(stepStart).Milliseconds(),
				"error", err,
				"snapshot", snapshot,
			)
			pc.Response = fallback.Generic(pc.DetectedLanguage)
			pc.ResponseMetadata["error"] = err.Error()
			pc.ResponseMetadata["failed_step"] = step.Name()
			pc.Error = err
			pc.FailedStep = step.Name()
			break
		}

		o.logger.Info("pipeline step completed",
			"step", step.Name(),
			"correlation_id", pc.CorrelationID,
			"duration_ms", time.Since(stepStart).Milliseconds(),
		)

		if !shouldContinue {
			pc.Stopped = true
			break
		}
	}

	pc.StepTimings["_total"] = time.Since(totalStart)
	return pc
}

// runStep recovers a panicking step and reports it the same way a
// returned error would be, so one misbehaving step can't take down the
// whole request.
func (o *Orchestrator) runStep(ctx context.Context, step Step, pc *Context) (shouldContinue bool, err error) {
	snapshot := pc.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			err = &StepError{Step: step.Name(), Err: panicError{r}, Snapshot: snapshot}
		}
	}()
	return step.Execute(ctx, pc)
}

type panicError struct{ value any }

func (p panicError) Error() string {
	return "panic in pipeline step"
}

// FlowFor maps a session's episode type to its initial flow state; kept
// here (rather than only in convstate) so SessionManagement can resolve
// a brand-new session's starting state in one place.
func FlowFor(episode convstate.EpisodeType) convstate.FlowState {
	return convstate.FlowStateFromEpisode(episode)
}
