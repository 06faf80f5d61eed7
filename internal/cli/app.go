package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/db"
	"payment-reconciler/internal/description"
	"payment-reconciler/internal/gateway"
	"payment-reconciler/internal/kafka"
	"payment-reconciler/internal/logging"
	"payment-reconciler/internal/metrics"
	"payment-reconciler/internal/reconcile"
)

// app holds the collaborators shared by every command, built once from config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	repo     *db.RegistrationRepository
	gateway  *gateway.Client
	parser   *description.Parser
	notifier reconcile.Notifier
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, stopLogger := logging.GetLogger(cfg.Logs)
	a := &app{cfg: cfg, logger: logger, closers: []func(){stopLogger}}

	metrics.Setup(cfg.Metrics, logger)

	pool, err := db.GetPool(ctx, cfg.Database.ConnString())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	a.repo = db.NewRegistrationRepository(pool)

	a.gateway = gateway.NewClient(cfg.Gateway, logger)
	a.parser = description.NewParser(cfg.Gateway.EventName)

	if cfg.Kafka.Enabled() {
		writer := kafka.NewWriter(cfg.Kafka, cfg.Kafka.Topic.StatusChanges)
		a.closers = append(a.closers, func() { _ = writer.Close() })
		a.notifier = kafka.NewStatusPublisher(writer)
	}

	logger.Info("Configuration loaded",
		"environment", cfg.Gateway.Environment,
		"eventName", cfg.Gateway.EventName,
		"pacing", cfg.Sync.Pacing().String(),
		"kafka", cfg.Kafka.Enabled())

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) syncer() *reconcile.Syncer {
	return reconcile.NewSyncer(a.gateway, a.repo, a.parser, reconcile.NewPacer(a.cfg.Sync.Pacing()), a.notifier,
		reconcile.SyncOptions{
			PageSize:     a.cfg.Gateway.PageSize,
			MaxPages:     a.cfg.Sync.MaxPages,
			HistoryLimit: a.cfg.Gateway.HistoryLimit,
		}, a.logger)
}

func (a *app) corrector() *reconcile.Corrector {
	return reconcile.NewCorrector(a.gateway, a.repo, a.parser, reconcile.NewPacer(a.cfg.Sync.Pacing()), a.notifier,
		a.cfg.Gateway.HistoryLimit, a.logger)
}

func (a *app) purger() *reconcile.Purger {
	return reconcile.NewPurger(a.repo, a.logger)
}

func (a *app) reporter() *reconcile.Reporter {
	return reconcile.NewReporter(a.repo)
}

// cutoff returns the --cutoff flag when set, otherwise the configured one.
func (a *app) cutoff(flag string) (time.Time, error) {
	if flag == "" {
		return a.cfg.Correction.Cutoff()
	}
	return parseDate("cutoff", flag)
}

func parseDate(name, value string) (time.Time, error) {
	t, err := time.Parse(config.DateLayout, value)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid --%s %q, expected YYYY-MM-DD", name, value)
	}
	return t, nil
}
