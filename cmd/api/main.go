package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/dv-referral-ledger/internal/bootstrap"
	"github.com/nimasrn/dv-referral-ledger/internal/config"
	"github.com/nimasrn/dv-referral-ledger/internal/handlers"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/nimasrn/dv-referral-ledger/internal/services"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
	"github.com/nimasrn/dv-referral-ledger/pkg/jwt"
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
	logger.Info("starting api", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	s := xhttp.NewServer(xhttp.ServerOption{
		ReadTimeout:        cfg.HttpReadTimeout,
		WriteTimeout:       cfg.HttpWriteTimeout,
		IdleTimeout:        cfg.HttpIdleTimeout,
		ReadBufferSize:     cfg.HttpReadBuffer,
		WriteBufferSize:    cfg.HttpWriteBuffer,
		MaxRequestBodySize: cfg.HttpMaxBodySize,
		Concurrency:        cfg.HttpConcurrency,
	})
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RecoverMiddleware)

	db, err := bootstrap.OpenDB()
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := bootstrap.OpenRedis("api")
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	bank, err := bootstrap.BankClient()
	if err != nil {
		logger.Error("failed to create bank client", "error", err)
		return
	}
	var lookup services.ReceiptLookup
	if bank != nil {
		defer bank.Close()
		lookup = bank
	} else {
		logger.Warn("no bank provider configured, receipts are checked by heuristics only")
	}

	userRepo := repository.NewUserRepository(db)
	formRepo := repository.NewFormRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// services
	referralService := services.NewReferralService(db, userRepo, referralRepo, formRepo, ledgerRepo)
	userService := services.NewUserService(db, userRepo, formRepo, referralService, ledgerRepo)
	formService := services.NewFormService(db, formRepo, outboxRepo)
	verifier := services.NewReceiptVerifier(cfg.ApplicationFee, cfg.ReceiptMaxAge, formRepo, lookup)
	paymentService := services.NewPaymentService(db, formRepo, outboxRepo, verifier)
	payoutService := services.NewPayoutService(db, payoutRepo, referralRepo, userRepo, ledgerRepo)
	healthService := services.NewHealthService(db, redisAdap)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if cfg.AppDebug {
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	// v1 handlers
	g := s.Router.Group(cfg.HttpBaseRequestUrl)
	handlers.Register(g, handlers.Handlers{
		Health:  handlers.NewHealthHandler(healthService),
		Users:   handlers.NewUserHandler(userService, referralService),
		Forms:   handlers.NewFormHandler(formService, paymentService),
		Admin:   handlers.NewAdminHandler(formService, paymentService),
		Payouts: handlers.NewPayoutHandler(payoutService),
	}, jwt.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}
