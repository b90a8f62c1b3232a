// Package pipeline sequences the release run: ordered stages of recorded
// steps, aborting at the first failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/releasegate/internal/logging"
	"github.com/fyrsmithlabs/releasegate/internal/steplog"
	"github.com/fyrsmithlabs/releasegate/internal/ui"
)

var (
	// ErrStepFailed indicates a step reported failure.
	ErrStepFailed = errors.New("step failed")

	// ErrCancelled indicates the operator declined at a gate.
	ErrCancelled = errors.New("cancelled by operator")
)

// StepError names the step that ended the run.
type StepError struct {
	Stage string
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s / %s: %v", e.Stage, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Step is a single recorded operation. Run prints its own diagnostics and
// reports success.
type Step struct {
	Name string
	Run  func(ctx context.Context) bool

	// SkipReason, when set, records the step as skipped instead of running it.
	SkipReason string
}

// Stage is a named group of steps.
type Stage struct {
	Name  string
	Steps []Step

	// Skip records every step of the stage as skipped.
	Skip       bool
	SkipReason string

	// Gate marks an operator decision point. A failing step here cancels
	// the run rather than failing it.
	Gate bool
}

// OutcomeKind is the terminal state of a run.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Failed
	Cancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is how a run ended and, unless it succeeded, at which step.
type Outcome struct {
	Kind  OutcomeKind
	Stage string
	Step  string
}

// Err returns nil on success and a *StepError otherwise.
func (o Outcome) Err() error {
	switch o.Kind {
	case Success:
		return nil
	case Cancelled:
		return &StepError{Stage: o.Stage, Step: o.Step, Err: ErrCancelled}
	default:
		return &StepError{Stage: o.Stage, Step: o.Step, Err: ErrStepFailed}
	}
}

// String renders the outcome for reports.
func (o Outcome) String() string {
	if o.Kind == Success {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s at %s", o.Kind, o.Step)
}

// Controller runs stages in order against one recorder.
type Controller struct {
	Recorder *steplog.Recorder
	UI       ui.Formatter
	Logger   *logging.Logger
}

func (c *Controller) log() *logging.Logger {
	if c.Logger == nil {
		return logging.Nop()
	}
	return c.Logger
}

// Run executes stages strictly in order. The first failing step ends the
// run; nothing after it executes and nothing before it is undone.
func (c *Controller) Run(ctx context.Context, stages []Stage) Outcome {
	for _, stage := range stages {
		sctx := logging.WithStage(ctx, stage.Name)

		if stage.Skip {
			c.UI.Info("Skipping %s (%s)", stage.Name, stage.SkipReason)
			for _, step := range stage.Steps {
				c.Recorder.Skip(step.Name, stage.SkipReason)
			}
			c.log().Debug(sctx, "stage skipped", zap.String("reason", stage.SkipReason))
			continue
		}

		c.UI.Heading(stage.Name)
		for _, step := range stage.Steps {
			if step.SkipReason != "" {
				c.UI.Info("Skipping %s (%s)", step.Name, step.SkipReason)
				c.Recorder.Skip(step.Name, step.SkipReason)
				continue
			}

			run := step.Run
			if c.Recorder.Run(step.Name, func() bool { return run(sctx) }) {
				continue
			}

			out := Outcome{Kind: Failed, Stage: stage.Name, Step: step.Name}
			if stage.Gate {
				out.Kind = Cancelled
			}
			c.log().Warn(sctx, "run stopped", zap.String("step", step.Name), zap.Error(out.Err()))
			return out
		}
	}
	return Outcome{Kind: Success}
}
