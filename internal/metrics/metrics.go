package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"payment-reconciler/internal/config"
)

// Setup starts pushing to the configured VictoriaMetrics endpoint, if any.
func Setup(cfg config.Metrics, logger *slog.Logger) {
	if cfg.URL == "" {
		return
	}

	err := metrics.InitPush(cfg.URL, time.Duration(cfg.IntervalMs)*time.Millisecond, cfg.CommonLabels, true)
	if err != nil {
		logger.Error("Error initializing metrics push", "error", err)
	}
}

// Handler exposes all registered metrics in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}
