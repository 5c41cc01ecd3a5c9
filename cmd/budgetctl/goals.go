package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
)

func newGoalsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Manage budget goals",
	}
	cmd.AddCommand(newGoalsListCmd(opts), newGoalsSetCmd(opts), newGoalsDeactivateCmd(opts))
	return cmd
}

func newGoalsListCmd(opts *rootOptions) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
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

			goals, err := services.NewGoalService(e.backend.Store).List(cmd.Context(), user)
			if err != nil {
				return err
			}
			t := newTable(opts.out, "ID", "Category", "Amount", "Granularity", "Active", "Created")
			for _, g := range goals {
				if activeOnly && !g.Active {
					continue
				}
				active := "no"
				if g.Active {
					active = "yes"
				}
				t.Append([]string{g.ID, g.CategoryID, g.Amount.StringFixed(2), string(g.Granularity), active, g.CreatedAt.Format(time.DateOnly)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show active goals")
	return cmd
}

func newGoalsSetCmd(opts *rootOptions) *cobra.Command {
	var granularity string
	cmd := &cobra.Command{
		Use:   "set CATEGORY AMOUNT",
		Short: "Set the budget for a category, replacing the active goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			g, err := services.NewGoalService(e.backend.Store).Set(cmd.Context(), services.GoalInput{
				UserID:      user,
				CategoryID:  args[0],
				Amount:      amount,
				Granularity: core.Granularity(granularity),
			})
			if err != nil {
				return err
			}
			printf(opts.out, "Goal %s: %s %s per %s\n", g.ID, g.CategoryID, g.Amount.StringFixed(2), g.Granularity)
			return nil
		},
	}
	cmd.Flags().StringVarP(&granularity, "granularity", "g", string(core.Month), "month or week")
	return cmd
}

func newGoalsDeactivateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate GOAL_ID",
		Short: "Deactivate a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := opts.requireUser()
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := services.NewGoalService(e.backend.Store).Deactivate(cmd.Context(), user, args[0]); err != nil {
				return err
			}
			printf(opts.out, "Goal %s deactivated\n", args[0])
			return nil
		},
	}
}
