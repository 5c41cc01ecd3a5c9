package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arsenis-cmd/BudgetBot/internal/amqp"
	"github.com/arsenis-cmd/BudgetBot/internal/analytics"
	"github.com/arsenis-cmd/BudgetBot/internal/budget"
	"github.com/arsenis-cmd/BudgetBot/internal/cli"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
	"github.com/arsenis-cmd/BudgetBot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting budgetbot-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", log.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	backendRes := cli.InitBackend(context.Background(), logger, cfg)
	defer backendRes.Cleanup()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
		Categorize: cfg.AMQPCategorizeQueue,
		Alerts:     cfg.AMQPAlertsQueue,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	store := backendRes.Store
	// Alerts raised by follow-ups go back through the broker so that a
	// single consumer owns the spreadsheet mirror.
	emitter := budget.NewEmitter(store,
		budget.Policy{WarningRatio: cfg.WarningRatio, CriticalRatio: cfg.CriticalRatio},
		budget.WithLocation(loc),
		budget.WithNotifier(amqpClient),
	)
	// The worker keeps no summary cache of its own; the server's entries
	// expire within SummaryCacheTTL.
	summarizer := analytics.NewSummarizer(store, loc, 0, 0)
	categorizer := services.NewCategorizer(store, ml.NewClient(cfg.MLServiceURL, cfg.CollaboratorTimeout),
		emitter, summarizer, cfg.CollaboratorTimeout)

	categorizeWorker := worker.NewCategorizeWorker(categorizer)
	alertMirror := worker.NewAlertMirror(backendRes.AlertSink)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeWithReconnect(gctx, cfg.AMQPCategorizeQueue, categorizeWorker.Handle)
	})
	g.Go(func() error {
		return amqpClient.ConsumeWithReconnect(gctx, cfg.AMQPAlertsQueue, alertMirror.Handle)
	})
	logger.Info("Consuming queues",
		"categorize_queue", cfg.AMQPCategorizeQueue,
		"alerts_queue", cfg.AMQPAlertsQueue,
		"sheets_enabled", cfg.SheetsEnabled())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
