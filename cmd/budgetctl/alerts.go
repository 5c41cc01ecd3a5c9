package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newAlertsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List the most recent budget alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			alerts, err := e.backend.Store.ListAlerts(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			t := newTable(opts.out, "Created", "Category", "Severity", "Period", "Message")
			for _, a := range alerts {
				t.Append([]string{
					a.CreatedAt.Format(time.RFC3339),
					a.CategoryID,
					string(a.Severity),
					a.PeriodStart.Format(time.DateOnly),
					a.Message,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of alerts")
	return cmd
}
