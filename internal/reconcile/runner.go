package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	runnerSuccessCounter = metrics.GetOrCreateCounter(`reconcile_runner_total{result="success"}`)
	runnerFailedCounter  = metrics.GetOrCreateCounter(`reconcile_runner_total{result="failed"}`)
)

type RunnerOptions struct {
	Interval         time.Duration
	Lookback         time.Duration
	RunTimeout       time.Duration
	Cutoff           time.Time
	CorrectAfterSync bool
}

// Runner repeats a sync over a trailing window on a fixed interval,
// optionally followed by a correction pass.
type Runner struct {
	syncer    *Syncer
	corrector *Corrector
	opts      RunnerOptions
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner makes corrector share the syncer's lock, so webhook payments
// handled by the same syncer never interleave with a correction write.
func NewRunner(syncer *Syncer, corrector *Corrector, opts RunnerOptions, logger *slog.Logger) *Runner {
	if corrector != nil {
		corrector.mu = &syncer.mu
	}
	return &Runner{
		syncer:    syncer,
		corrector: corrector,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *Runner) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.RunOnce(ctx)
			case <-ctx.Done():
				r.logger.InfoContext(ctx, "Context done, stopping runner")
				return
			}
		}
	}()
}

// RunOnce performs one sync, and the correction if enabled, each under its own deadline.
func (r *Runner) RunOnce(ctx context.Context) {
	since := r.now().UTC().Add(-r.opts.Lookback).Truncate(24 * time.Hour)

	syncCtx, cancel := context.WithTimeout(ctx, r.opts.RunTimeout)
	syncReport, err := r.syncer.Sync(syncCtx, since)
	cancel()
	if err != nil {
		r.logger.ErrorContext(ctx, "Sync run aborted", "error", err)
		runnerFailedCounter.Inc()
		return
	}
	if !r.opts.CorrectAfterSync || r.corrector == nil {
		r.finish(ctx, syncReport.Errors)
		return
	}

	correctCtx, cancel := context.WithTimeout(ctx, r.opts.RunTimeout)
	correctionReport, err := r.corrector.Correct(correctCtx, r.opts.Cutoff)
	cancel()
	if err != nil {
		r.logger.ErrorContext(ctx, "Correction run aborted", "error", err)
		runnerFailedCounter.Inc()
		return
	}
	r.finish(ctx, syncReport.Errors+correctionReport.Errors)
}

func (r *Runner) finish(ctx context.Context, errorCount int) {
	if errorCount > 0 {
		r.logger.WarnContext(ctx, "Scheduled run finished with item errors", "errors", errorCount)
	}
	runnerSuccessCounter.Inc()
}
