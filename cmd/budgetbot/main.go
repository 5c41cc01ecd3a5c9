package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/adapters"
	"github.com/arsenis-cmd/BudgetBot/internal/amqp"
	"github.com/arsenis-cmd/BudgetBot/internal/analytics"
	"github.com/arsenis-cmd/BudgetBot/internal/budget"
	"github.com/arsenis-cmd/BudgetBot/internal/cache"
	"github.com/arsenis-cmd/BudgetBot/internal/cli"
	"github.com/arsenis-cmd/BudgetBot/internal/forecast"
	apphttp "github.com/arsenis-cmd/BudgetBot/internal/http"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
	"github.com/arsenis-cmd/BudgetBot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", log.FieldError, err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	backendRes := cli.InitBackend(context.Background(), logger, cfg)
	store := backendRes.Store

	summarizer := analytics.NewSummarizer(store, loc, cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	cacheManager := cache.NewManager()
	if c := summarizer.Cache(); c != nil {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(time.Minute)

	mlClient := ml.NewClient(cfg.MLServiceURL, cfg.CollaboratorTimeout)

	// With a broker, alerts and categorization follow-ups leave the process
	// and budgetbot-worker picks them up. Without one, both run here.
	var (
		amqpClient *amqp.Client
		mirror     *budget.AsyncNotifier
		notifier   budget.AlertNotifier
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
			Categorize: cfg.AMQPCategorizeQueue,
			Alerts:     cfg.AMQPAlertsQueue,
		})
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, categorizing in-process", log.FieldError, err)
			amqpClient = nil
		} else {
			notifier = amqpClient
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange)
		}
	}
	if amqpClient == nil {
		// The sheet append runs off the request path.
		mirror = budget.NewAsyncNotifier(worker.NewAlertMirror(backendRes.AlertSink), 10*time.Second)
		notifier = mirror
	}

	emitter := budget.NewEmitter(store,
		budget.Policy{WarningRatio: cfg.WarningRatio, CriticalRatio: cfg.CriticalRatio},
		budget.WithLocation(loc),
		budget.WithNotifier(notifier),
	)

	var (
		dispatcher services.Dispatcher
		pool       *services.CategorizePool
	)
	if amqpClient != nil {
		dispatcher = amqpClient
	} else {
		categorizer := services.NewCategorizer(store, mlClient, emitter, summarizer, cfg.CollaboratorTimeout)
		pool = services.NewCategorizePool(adapters.CategorizeFunc(categorizer), services.CategorizePoolConfig{
			Workers:   cfg.CategorizeWorkers,
			QueueSize: cfg.CategorizeQueueSize,
		})
		if err := pool.Start(context.Background()); err != nil {
			logger.Error("Failed to start categorization pool", log.FieldError, err)
			os.Exit(1)
		}
		dispatcher = pool
	}

	txService := services.NewTransactionService(store, emitter, summarizer, dispatcher)
	orchestrator := forecast.NewOrchestrator(mlClient, store, forecast.Config{
		HistoryLimit: cfg.ForecastHistoryLimit,
		Timeout:      cfg.CollaboratorTimeout,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions: txService,
		Goals:        services.NewGoalService(store),
		Summaries:    summarizer,
		Insights:     orchestrator,
		Checks: map[string]apphttp.Check{
			"storage": store.Ping,
			"ml":      mlClient.Health,
		},
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Location:           loc,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if pool != nil {
			if err := pool.Stop(shutdownCtx); err != nil {
				logger.Warn("Categorization pool did not drain", log.FieldError, err)
			}
		}
		if mirror != nil {
			if err := mirror.Close(shutdownCtx); err != nil {
				logger.Warn("Alert mirror did not drain", log.FieldError, err)
			}
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		cacheManager.Stop()
		if err := backendRes.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting budgetbot server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", amqpClient != nil,
		"sheets_enabled", cfg.SheetsEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
