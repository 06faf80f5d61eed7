package cli

import (
	"github.com/spf13/cobra"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/db"
	"payment-reconciler/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	logger, stop := logging.GetLogger(cfg.Logs)
	defer stop()

	if err := db.RunMigrations(cfg.Database.ConnString()); err != nil {
		return err
	}
	logger.Info("Migrations applied", "database", cfg.Database.Name)
	return nil
}
