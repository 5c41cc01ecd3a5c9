package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/arsenis-cmd/BudgetBot/internal/backend"
	"github.com/arsenis-cmd/BudgetBot/internal/cli"
	"github.com/arsenis-cmd/BudgetBot/internal/config"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
)

type rootOptions struct {
	user string
	out  io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{out: os.Stdout}

	root := &cobra.Command{
		Use:           "budgetctl",
		Short:         "Inspect budgets, alerts and summaries",
		Long:          "budgetctl reads the same configuration as the budgetbot server and talks to its store directly.",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cli.LoadEnvFile()
			opts.out = cmd.OutOrStdout()
		},
	}
	root.PersistentFlags().StringVarP(&opts.user, "user", "u", "", "User id to act for")

	root.AddCommand(
		newSummaryCmd(opts),
		newAlertsCmd(opts),
		newGoalsCmd(opts),
		newCategoriesCmd(opts),
		newMigrateCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func (o *rootOptions) requireUser() (string, error) {
	u := strings.TrimSpace(o.user)
	if u == "" {
		return "", errors.New("--user is required")
	}
	return u, nil
}

// env is what every store-backed command works with.
type env struct {
	cfg     *config.Config
	backend *backend.BackendResult
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	// Mirroring is the server's job; the CLI never writes to the sheet.
	bcfg.GoogleSpreadsheetID = ""

	logger := log.New(log.Config{Level: log.ParseLevel("warn"), Output: os.Stderr, Component: log.ComponentApp})
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, backend: res}, nil
}

func (e *env) Close() {
	if e.backend.Cleanup != nil {
		_ = e.backend.Cleanup()
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
