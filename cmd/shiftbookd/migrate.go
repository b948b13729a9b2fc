package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"shift-booking-backend/config"
	"shift-booking-backend/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Runs GORM AutoMigrate for requests, shift items and push subscriptions.

Safe to run multiple times (idempotent).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file (empty for defaults and environment only)")
	return cmd
}

func runMigrate(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("migrate: load config: %w", err)
	}

	gormDB, err := db.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	fmt.Fprintf(out, "Migrating %s database...\n", cfg.Database.Driver)
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(out, "Migration complete.")
	return nil
}
