package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"payment-reconciler/internal/db"
	"payment-reconciler/internal/event"
	"payment-reconciler/internal/kafka"
	"payment-reconciler/internal/metrics"
	"payment-reconciler/internal/reconcile"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run sync periodically and consume gateway webhook events",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := db.RunMigrations(a.cfg.Database.ConnString()); err != nil {
		return err
	}

	cutoff, err := a.cfg.Correction.Cutoff()
	if err != nil {
		return err
	}

	syncer := a.syncer()
	runner := reconcile.NewRunner(syncer, a.corrector(), reconcile.RunnerOptions{
		Interval:         time.Duration(a.cfg.Serve.IntervalMs) * time.Millisecond,
		Lookback:         time.Duration(a.cfg.Sync.LookbackDays) * 24 * time.Hour,
		RunTimeout:       a.cfg.Sync.RunTimeout(),
		Cutoff:           cutoff,
		CorrectAfterSync: a.cfg.Serve.CorrectAfterSync,
	}, a.logger)
	runner.Start(ctx)

	if a.cfg.Kafka.Enabled() {
		eventReader := kafka.NewReader(a.cfg.Kafka.Broker.URL, a.cfg.Kafka.Topic.GatewayEvents, a.cfg.Kafka.Reader.GroupID)
		defer eventReader.Close()

		processor := event.NewProcessor(syncer, a.logger)
		go kafka.ReadPaymentEvents(ctx, eventReader, processor, a.logger)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{Addr: ":" + a.cfg.Serve.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.logger.Info("Serving", "port", a.cfg.Serve.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}
