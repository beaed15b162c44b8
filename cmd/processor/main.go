package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/dv-referral-ledger/internal/bootstrap"
	"github.com/nimasrn/dv-referral-ledger/internal/config"
	"github.com/nimasrn/dv-referral-ledger/internal/processor"
	"github.com/nimasrn/dv-referral-ledger/internal/queue"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/nimasrn/dv-referral-ledger/internal/services"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/prom"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(bootstrap.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting processor", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	db, err := bootstrap.OpenDB()
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := bootstrap.OpenRedis("processor")
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)

	userRepo := repository.NewUserRepository(db)
	formRepo := repository.NewFormRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	referralService := services.NewReferralService(db, userRepo, referralRepo, formRepo, ledgerRepo)

	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyConfig.MaxRetries = cfg.QueueMaxRetries
	idempotencyService := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	queueConfig := bootstrap.RewardQueueConfig()
	publisher, err := queue.NewQueue(redisAdap, queueConfig)
	if err != nil {
		logger.Error("failed creating reward queue", "error", err)
		return
	}

	newQueue := func(c queue.QueueConfig) (*queue.Queue, error) {
		return queue.NewQueue(redisAdap, c)
	}
	service := processor.NewProcessorService(
		newQueue,
		processor.NewReferralEventProcessor(referralService, idempotencyService),
		processor.Options{
			Queue:     queueConfig,
			Consumers: cfg.ProcessorConsumers,
			Workers:   cfg.ProcessorWorkers,
			Redis:     redisAdap,
		},
	).
		WithRelay(processor.NewOutboxRelay(db, outboxRepo, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)).
		WithReconciler(processor.NewLedgerReconciler(ledgerRepo, cfg.ReconcileSchedule))

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		service.Stop()
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
}
