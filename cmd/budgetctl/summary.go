package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/arsenis-cmd/BudgetBot/internal/analytics"
	"github.com/arsenis-cmd/BudgetBot/internal/core"
)

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var (
		granularity string
		date        string
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expenses and per-category spend for a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			g := core.Granularity(granularity)
			if err := g.Validate(); err != nil {
				return err
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			loc, err := e.cfg.Location()
			if err != nil {
				return err
			}
			at := time.Now().In(loc)
			if date != "" {
				if at, err = time.ParseInLocation(time.DateOnly, date, loc); err != nil {
					return err
				}
			}

			sum, err := analytics.NewSummarizer(e.backend.Store, loc, 0, 0).SummarizeAt(cmd.Context(), user, at, g)
			if err != nil {
				return err
			}

			printf(opts.out, "Period %s .. %s (%s)\n",
				sum.Period.Start.Format(time.DateOnly),
				sum.Period.End.AddDate(0, 0, -1).Format(time.DateOnly),
				sum.Period.Granularity)
			printf(opts.out, "Income %s  Expenses %s  Net %s  Transactions %d\n\n",
				sum.Income.StringFixed(2), sum.Expenses.StringFixed(2), sum.Net.StringFixed(2), sum.TransactionCount)

			t := newTable(opts.out, "Category", "Spent")
			for _, c := range sum.ByCategory {
				t.Append([]string{c.CategoryID, c.Amount.StringFixed(2)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&granularity, "granularity", "g", string(core.Month), "month or week")
	cmd.Flags().StringVar(&date, "date", "", "Any day inside the period (YYYY-MM-DD), default today")
	return cmd
}
