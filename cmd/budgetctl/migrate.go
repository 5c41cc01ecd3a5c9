package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/arsenis-cmd/BudgetBot/internal/config"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DataBackend != "sqlite" {
				return errors.New("migrations only apply to the sqlite backend")
			}
			dsn := storage.DSN(cfg.SQLiteDBPath)

			if statusOnly {
				version, dirty, err := storage.MigrationVersion(dsn)
				if err != nil {
					return err
				}
				printf(opts.out, "Schema version %d (dirty=%v) at %s\n", version, dirty, cfg.SQLiteDBPath)
				return nil
			}

			version, err := storage.RunMigrations(dsn)
			if err != nil {
				return err
			}
			printf(opts.out, "Schema at version %d (%s)\n", version, cfg.SQLiteDBPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Report the applied version without migrating")
	return cmd
}
