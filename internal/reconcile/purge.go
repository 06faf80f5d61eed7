package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

type PurgeReport struct {
	Cutoff  time.Time `json:"cutoff"`
	Matched int64     `json:"matched"`
	Deleted int64     `json:"deleted"`
	DryRun  bool      `json:"dryRun"`
}

// Purger drops registrations created before the cutoff. It shares the
// created_at predicate with Reporter and Corrector, so all three agree on scope.
type Purger struct {
	store  Store
	logger *slog.Logger
}

func NewPurger(store Store, logger *slog.Logger) *Purger {
	return &Purger{store: store, logger: logger}
}

func (p *Purger) Purge(ctx context.Context, cutoff time.Time, dryRun bool) (*PurgeReport, error) {
	report := &PurgeReport{Cutoff: cutoff, DryRun: dryRun}

	matched, err := p.store.CountCreatedBefore(ctx, cutoff)
	if err != nil {
		return report, errors.Wrap(err, "count out-of-scope registrations")
	}
	report.Matched = matched

	if dryRun || matched == 0 {
		p.logger.InfoContext(ctx, "Purge skipped", "cutoff", cutoff.Format(time.DateOnly), "matched", matched, "dryRun", dryRun)
		return report, nil
	}

	deleted, err := p.store.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return report, errors.Wrap(err, "delete out-of-scope registrations")
	}
	report.Deleted = deleted
	purgedCounter.Add(int(deleted))

	p.logger.InfoContext(ctx, "Purged registrations", "cutoff", cutoff.Format(time.DateOnly), "deleted", deleted)
	return report, nil
}
