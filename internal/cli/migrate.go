package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hisaab/internal/storage"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("status", false, "Only print the applied schema version")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQLite schema migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.DataBackend != "sqlite" {
		return fmt.Errorf("migrate needs DATA_BACKEND=sqlite, got %q", cfg.DataBackend)
	}
	logger := SetupLogger(cfg)

	statusOnly, _ := cmd.Flags().GetBool("status")
	if !statusOnly {
		if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return err
		}
		logger.Info("Migrations applied", "db_path", cfg.SQLiteDBPath)
	}

	version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
