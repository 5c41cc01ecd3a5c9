package main

import (
	"github.com/spf13/cobra"

	"github.com/arsenis-cmd/BudgetBot/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or scaffold configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			source := "defaults and environment"
			if cfg.ConfigFile != "" {
				source = cfg.ConfigFile
			}
			printf(opts.out, "Source: %s\n\n", source)

			t := newTable(opts.out, "Setting", "Value")
			t.AppendBulk([][]string{
				{"backend", cfg.DataBackend},
				{"sqlite path", cfg.SQLiteDBPath},
				{"amqp", enabled(cfg.AMQPEnabled())},
				{"ml service", cfg.MLServiceURL},
				{"collaborator timeout", cfg.CollaboratorTimeout.String()},
				{"warning ratio", fmtRatio(cfg.WarningRatio)},
				{"critical ratio", fmtRatio(cfg.CriticalRatio)},
				{"timezone", cfg.Timezone},
				{"sheets mirror", enabled(cfg.SheetsEnabled())},
			})
			t.Render()
			return cfg.Validate()
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init PATH",
		Short: "Write the current configuration as a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if force {
				if err := removeIfExists(args[0]); err != nil {
					return err
				}
			}
			if err := cfg.WriteFile(args[0]); err != nil {
				return err
			}
			printf(opts.out, "Wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
