// Package reconcile detects registry entries whose helpdesk inbox was
// deleted outside the onboarding service.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/events"
	"github.com/Fusionaimcp4/localboxs/internal/helpdesk"
	"github.com/Fusionaimcp4/localboxs/internal/metrics"
	"github.com/Fusionaimcp4/localboxs/internal/registry"
)

const defaultRunTimeout = 10 * time.Minute

// InboxChecker looks up helpdesk inboxes.
type InboxChecker interface {
	GetInbox(ctx context.Context, id int64) (*helpdesk.Inbox, error)
}

// Registry is the part of registry.Store the reconciler uses.
type Registry interface {
	List(ctx context.Context) ([]registry.Entry, error)
	DeleteIfInbox(ctx context.Context, slug string, inboxID int64) error
}

// EventPublisher announces drifted demos.
type EventPublisher interface {
	PublishAsync(event events.DemoEvent)
}

type Config struct {
	// Schedule is a cron spec or descriptor such as "@every 1h".
	Schedule string
	// Prune deletes entries whose inbox is gone.
	Prune      bool
	RunTimeout time.Duration
}

// Report summarizes one run.
type Report struct {
	Checked int      `json:"checked"`
	Drifted []string `json:"drifted"`
	Pruned  int      `json:"pruned"`
	Errors  int      `json:"errors"`
}

type Reconciler struct {
	cfg      Config
	registry Registry
	inboxes  InboxChecker
	events   EventPublisher
	metrics  *metrics.Metrics
	log      infralogger.Logger
	cron     *cron.Cron
}

// New creates a Reconciler. events and m may be nil.
func New(cfg Config, reg Registry, inboxes InboxChecker, pub EventPublisher, m *metrics.Metrics, log infralogger.Logger) *Reconciler {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Reconciler{
		cfg:      cfg,
		registry: reg,
		inboxes:  inboxes,
		events:   pub,
		metrics:  m,
		log:      log,
	}
}

// Run checks every registry entry once.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	report := Report{Drifted: []string{}}

	entries, err := r.registry.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list registry: %w", err)
	}

	for i := range entries {
		e := entries[i]
		if e.Chatwoot.InboxID == 0 {
			continue
		}
		report.Checked++

		_, getErr := r.inboxes.GetInbox(ctx, e.Chatwoot.InboxID)
		if getErr == nil {
			continue
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if !errors.Is(getErr, helpdesk.ErrInboxNotFound) {
			report.Errors++
			r.log.Warn("Inbox check failed",
				infralogger.Slug(e.Slug),
				infralogger.Int64("inbox_id", e.Chatwoot.InboxID),
				infralogger.Error(getErr),
			)
			continue
		}

		pruned, stale := r.prune(ctx, e)
		if stale {
			continue
		}
		report.Drifted = append(report.Drifted, e.Slug)
		if pruned {
			report.Pruned++
		}
		r.announce(e, pruned)
	}

	r.metrics.RecordReconcile(len(report.Drifted), report.Pruned)
	r.log.Info("Registry reconciliation finished",
		infralogger.Int("checked", report.Checked),
		infralogger.Int("drifted", len(report.Drifted)),
		infralogger.Int("pruned", report.Pruned),
		infralogger.Int("errors", report.Errors),
	)
	return report, nil
}

// prune removes e when pruning is enabled. stale reports that the slug was
// re-onboarded or removed after List, so e no longer describes it.
func (r *Reconciler) prune(ctx context.Context, e registry.Entry) (pruned, stale bool) {
	if !r.cfg.Prune {
		r.log.Warn("Demo inbox missing",
			infralogger.Slug(e.Slug),
			infralogger.Int64("inbox_id", e.Chatwoot.InboxID),
		)
		return false, false
	}

	err := r.registry.DeleteIfInbox(ctx, e.Slug, e.Chatwoot.InboxID)
	switch {
	case errors.Is(err, registry.ErrInboxChanged), errors.Is(err, registry.ErrNotFound):
		r.log.Info("Demo changed during reconciliation, keeping it",
			infralogger.Slug(e.Slug),
			infralogger.Int64("inbox_id", e.Chatwoot.InboxID),
			infralogger.Error(err),
		)
		return false, true
	case err != nil:
		r.log.Error("Failed to prune drifted demo", infralogger.Slug(e.Slug), infralogger.Error(err))
		return false, false
	}

	r.log.Warn("Pruned demo with missing inbox",
		infralogger.Slug(e.Slug),
		infralogger.Int64("inbox_id", e.Chatwoot.InboxID),
	)
	return true, false
}

func (r *Reconciler) announce(e registry.Entry, pruned bool) {
	if r.events == nil {
		return
	}
	r.events.PublishAsync(events.DemoEvent{
		EventType: events.DemoDrifted,
		Slug:      e.Slug,
		Timestamp: time.Now().UTC(),
		Payload:   events.DriftedPayload{InboxID: e.Chatwoot.InboxID, Pruned: pruned},
	})
}

// Start schedules Run on cfg.Schedule. Overlapping runs are skipped.
func (r *Reconciler) Start(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(r.cfg.Schedule); err != nil {
		return fmt.Errorf("parse reconcile schedule %q: %w", r.cfg.Schedule, err)
	}

	r.cron = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
		if _, err := r.Run(runCtx); err != nil {
			r.log.Error("Registry reconciliation failed", infralogger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule reconciler: %w", err)
	}

	r.cron.Start()
	r.log.Info("Registry reconciler started",
		infralogger.String("schedule", r.cfg.Schedule),
		infralogger.Bool("prune", r.cfg.Prune),
	)
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
