package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	sinceFlag  string
	cutoffFlag string
	dryRun     bool
	jsonOutput bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import gateway payments created since a date",
	Long: `Walks the gateway payments created on or after --since (default: the
configured lookback window), inserting registrations for unknown customers
and updating the payment status of known ones.`,
	RunE: runSync,
}

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Recompute status, total and installments of in-scope registrations",
	RunE:  runCorrect,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete registrations created before the cutoff",
	RunE:  runPurge,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print counts and revenue by payment status",
	RunE:  runReport,
}

func init() {
	syncCmd.Flags().StringVar(&sinceFlag, "since", "", "Sync payments created on or after this date (YYYY-MM-DD)")

	for _, cmd := range []*cobra.Command{correctCmd, purgeCmd, reportCmd} {
		cmd.Flags().StringVar(&cutoffFlag, "cutoff", "", "Cutoff date (YYYY-MM-DD), defaults to correction.cutoff-date")
	}
	purgeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count the registrations that would be deleted")
	reportCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	since := time.Now().UTC().AddDate(0, 0, -a.cfg.Sync.LookbackDays).Truncate(24 * time.Hour)
	if sinceFlag != "" {
		if since, err = parseDate("since", sinceFlag); err != nil {
			return err
		}
	}

	return withDeadline(cmd.Context(), a.cfg.Sync.RunTimeout(), a.logger, func(ctx context.Context) error {
		report, err := a.syncer().Sync(ctx, since)
		if report != nil {
			if renderErr := report.Render(cmd.OutOrStdout()); renderErr != nil {
				return renderErr
			}
		}
		return err
	})
}

func runCorrect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cutoff, err := a.cutoff(cutoffFlag)
	if err != nil {
		return err
	}

	return withDeadline(cmd.Context(), a.cfg.Sync.RunTimeout(), a.logger, func(ctx context.Context) error {
		report, err := a.corrector().Correct(ctx, cutoff)
		if report != nil {
			if renderErr := report.Render(cmd.OutOrStdout()); renderErr != nil {
				return renderErr
			}
		}
		return err
	})
}

func runPurge(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cutoff, err := a.cutoff(cutoffFlag)
	if err != nil {
		return err
	}

	return withDeadline(cmd.Context(), a.cfg.Sync.RunTimeout(), a.logger, func(ctx context.Context) error {
		report, err := a.purger().Purge(ctx, cutoff, dryRun)
		if err != nil {
			return err
		}
		return report.Render(cmd.OutOrStdout())
	})
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	cutoff, err := a.cutoff(cutoffFlag)
	if err != nil {
		return err
	}

	return withDeadline(cmd.Context(), a.cfg.Sync.RunTimeout(), a.logger, func(ctx context.Context) error {
		report, err := a.reporter().Report(ctx, cutoff)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return errors.Wrap(enc.Encode(report), "encode report")
		}
		return report.Render(cmd.OutOrStdout())
	})
}
