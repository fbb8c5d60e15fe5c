package onboard

import (
	"context"
	"time"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/metrics"
)

// Step names, in pipeline order.
const (
	StepLoadTemplate      = "load-template"
	StepValidate          = "validate"
	StepFetch             = "fetch"
	StepDiscoverLinks     = "discover-links"
	StepGenerateKB        = "generate-kb"
	StepMerge             = "merge"
	StepWriteSystemMsg    = "write-system-message"
	StepProvisionInbox    = "provision-inbox"
	StepRenderDemo        = "render-demo"
	StepWriteDemoPage     = "write-demo-page"
	StepProvisionBot      = "provision-bot"
	StepProvisionWorkflow = "provision-workflow"
	StepUpdateRegistry    = "update-registry"
	StepMirrorDatabase    = "mirror-database"
	StepRespond           = "respond"
)

// Policy says what a step failure does to the pipeline.
type Policy string

const (
	// Required failures abort the pipeline and run compensations.
	Required Policy = "required"
	// BestEffort failures are recorded and the pipeline continues.
	BestEffort Policy = "best-effort"
)

// Step statuses.
const (
	StatusOK          = "ok"
	StatusFailed      = "failed"
	StatusSkipped     = "skipped"
	StatusCompensated = "compensated"
)

const compensateTimeout = 30 * time.Second

// StepReport is the outcome of one step.
type StepReport struct {
	Name       string `json:"name"`
	Policy     Policy `json:"policy"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type compensation struct {
	step string
	fn   func(ctx context.Context) error
}

// run tracks one pipeline execution.
type run struct {
	log     infralogger.Logger
	metrics *metrics.Metrics
	steps   []StepReport
	undo    []compensation
}

// do executes one step. A required failure is returned as *StepError; a
// best-effort failure is only recorded and nil is returned.
func (r *run) do(ctx context.Context, name string, policy Policy, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	report := StepReport{Name: name, Policy: policy, Status: StatusOK, DurationMS: elapsed.Milliseconds()}
	outcome := metrics.OutcomeOK
	if err != nil {
		report.Status = StatusFailed
		report.Error = err.Error()
		outcome = metrics.OutcomeFailed
	}
	r.steps = append(r.steps, report)
	r.metrics.RecordStep(name, outcome, elapsed)

	if err == nil {
		r.log.Debug("Onboarding step finished",
			infralogger.Step(name),
			infralogger.Duration("duration", elapsed),
		)
		return nil
	}

	if policy == BestEffort {
		r.log.Warn("Best-effort onboarding step failed",
			infralogger.Step(name),
			infralogger.Error(err),
		)
		return nil
	}

	r.log.Error("Required onboarding step failed",
		infralogger.Step(name),
		infralogger.Error(err),
	)
	return &StepError{Step: name, Err: err}
}

// skip records a step that did not run.
func (r *run) skip(name string, policy Policy, reason string) {
	r.steps = append(r.steps, StepReport{Name: name, Policy: policy, Status: StatusSkipped, Error: reason})
	r.metrics.RecordStep(name, metrics.OutcomeSkipped, 0)
}

// onFailure registers an action that undoes a completed step.
func (r *run) onFailure(step string, fn func(ctx context.Context) error) {
	r.undo = append(r.undo, compensation{step: step, fn: fn})
}

// compensate runs the registered actions newest first. It detaches from
// the request context so a cancelled request still cleans up.
func (r *run) compensate(ctx context.Context) {
	if len(r.undo) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	for i := len(r.undo) - 1; i >= 0; i-- {
		c := r.undo[i]
		err := c.fn(ctx)
		r.metrics.RecordCompensation(c.step, err)
		if err != nil {
			r.log.Error("Compensation failed",
				infralogger.Step(c.step),
				infralogger.Error(err),
			)
			continue
		}
		r.markCompensated(c.step)
		r.log.Info("Compensated onboarding step", infralogger.Step(c.step))
	}
	r.undo = nil
}

func (r *run) markCompensated(step string) {
	for i := range r.steps {
		if r.steps[i].Name == step && r.steps[i].Status == StatusOK {
			r.steps[i].Status = StatusCompensated
		}
	}
}
