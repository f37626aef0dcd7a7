package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dairyops/dairyops/internal/app"
	"github.com/dairyops/dairyops/internal/billing"
	"github.com/dairyops/dairyops/internal/cattle"
	jobmetrics "github.com/dairyops/dairyops/internal/jobs"
	"github.com/dairyops/dairyops/internal/ledger"
	"github.com/dairyops/dairyops/internal/notify"
	"github.com/dairyops/dairyops/internal/platform/db"
	"github.com/dairyops/dairyops/internal/scheduler"
	"github.com/dairyops/dairyops/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramToken != "" {
		notifier = notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.TelegramToken,
			ChatID: cfg.TelegramChatID,
		}, logger)
	}

	metrics := jobmetrics.NewMetrics(nil)

	schedulerService := scheduler.NewService(scheduler.NewRepository(pool), notifier, logger)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), logger)
	billingService := billing.NewService(billing.NewRepository(pool), ledgerService, notifier, logger, cfg.UPIHandle)
	cattleService := cattle.NewService(cattle.NewRepository(pool), notifier, logger)

	deliveryJobs := jobs.NewDeliveryJobs(schedulerService, metrics, logger)
	invoiceJobs := jobs.NewInvoiceJobs(billingService, metrics, logger)
	ledgerJobs := jobs.NewLedgerJobs(ledgerService, metrics, logger)
	cattleJobs := jobs.NewCattleJobs(cattleService, metrics, logger)

	generateTask, err := jobs.NewDeliveryGenerateTask(jobs.DeliveryGeneratePayload{})
	if err != nil {
		logger.Error("build delivery generate task", slog.Any("error", err))
		os.Exit(1)
	}
	completeTask, err := jobs.NewDeliveryCompleteTask(jobs.DeliveryCompletePayload{})
	if err != nil {
		logger.Error("build delivery complete task", slog.Any("error", err))
		os.Exit(1)
	}
	invoiceTask, err := jobs.NewInvoiceGenerateTask(jobs.InvoiceGeneratePayload{})
	if err != nil {
		logger.Error("build invoice task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDeliveryGenerate, Handler: deliveryJobs.HandleGenerate},
			{Type: jobs.TaskDeliveryComplete, Handler: deliveryJobs.HandleComplete},
			{Type: jobs.TaskInvoiceGenerate, Handler: invoiceJobs.HandleGenerate},
			{Type: jobs.TaskLedgerSync, Handler: ledgerJobs.HandleSync},
			{Type: jobs.TaskCattleStatus, Handler: cattleJobs.HandleStatusRun},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DeliveryGenerateCron, Task: generateTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.DeliveryCompleteCron, Task: completeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.InvoiceGenerateCron, Task: invoiceTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.LedgerSyncCron, Task: jobs.NewLedgerSyncTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CattleStatusCron, Task: jobs.NewCattleStatusTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
