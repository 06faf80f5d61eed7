package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "payment-reconciler",
		Short: "Keeps event registrations in line with the payment gateway",
		Long: `payment-reconciler reads customers and payments from the billing gateway and
reconciles them with the local event_registrations table.

Batch commands (sync, correct, purge, report) run once under a hard deadline.
serve runs sync periodically and consumes forwarded gateway webhooks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "Directory containing config.yaml")
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
