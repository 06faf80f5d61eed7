package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/logcontext"
)

const serviceName = "payment-reconciler"

// GetLogger returns a JSON stdout logger, or a Loki-backed one when a push URL is set.
// The returned stop function flushes the Loki client and is safe to call either way.
func GetLogger(cfg config.Logs) (*slog.Logger, func()) {
	level := parseLevel(cfg.Level)
	if cfg.URL == "" {
		return localLogger(level), func() {}
	}

	logger, stop, err := remoteLogger(cfg.URL, level)
	if err != nil {
		fallback := localLogger(level)
		fallback.Error("Error creating loki client, logging to stdout", "error", err)
		return fallback, func() {}
	}
	return logger, stop
}

func localLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(logcontext.ContextHandler{Handler: handler}).With("service", serviceName)
}

func remoteLogger(url string, level slog.Level) (*slog.Logger, func(), error) {
	lokiConfig, err := loki.NewDefaultConfig(url)
	if err != nil {
		return nil, nil, err
	}
	client, err := loki.New(lokiConfig)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slogloki.Option{
		Level:  level,
		Client: client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{
			logcontext.Attrs,
		},
	}.NewLokiHandler()).With("service", serviceName)

	return logger, client.Stop, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
