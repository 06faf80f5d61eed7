package cli

import (
	"context"
	"log/slog"
	"os"
	"time"
)

const watchdogExitCode = 2

var (
	watchdogGrace = 10 * time.Second
	exit          = os.Exit
)

// withDeadline runs job under a context deadline. If the job has not
// returned by the deadline plus a grace period, the process exits with
// status 2 so a scheduler never sees a stuck run.
func withDeadline(ctx context.Context, timeout time.Duration, logger *slog.Logger, job func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	watchdog := time.AfterFunc(timeout+watchdogGrace, func() {
		logger.Error("Job overran its deadline, exiting", "timeout", timeout.String())
		exit(watchdogExitCode)
	})
	defer watchdog.Stop()

	return job(ctx)
}
