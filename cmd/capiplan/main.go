package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/capiplan/capiplan/internal/app"
	"github.com/capiplan/capiplan/internal/audit"
	audithttp "github.com/capiplan/capiplan/internal/audit/http"
	"github.com/capiplan/capiplan/internal/cascade"
	"github.com/capiplan/capiplan/internal/cashflow"
	"github.com/capiplan/capiplan/internal/investment"
	"github.com/capiplan/capiplan/internal/notify"
	"github.com/capiplan/capiplan/internal/observability"
	"github.com/capiplan/capiplan/internal/platform/db"
	"github.com/capiplan/capiplan/internal/rbac"
	"github.com/capiplan/capiplan/internal/schedule"
	"github.com/capiplan/capiplan/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	resolver := rbac.NewResolver()
	rbacMiddleware := rbac.Middleware{Resolver: resolver, Logger: logger}

	recorder := audit.NewPGRecorder(dbpool)
	queue := notify.NewQueue()
	store := notify.NewPGStore(dbpool)

	deliverer := jobs.NewDeliverer(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := deliverer.Close(); err != nil {
			logger.Warn("deliverer close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	dispatch := func() {
		batch, err := queue.Process(deliverer.Handle)
		if err != nil {
			logger.Error("notification dispatch", slog.Any("error", err))
			return
		}
		metrics.ObserveDispatched(len(batch))
	}

	investmentRepo := investment.NewRepository(dbpool)
	cashflowRepo := cashflow.NewRepository(dbpool)
	coordinator := cascade.NewCoordinator(cashflowRepo, investmentRepo, schedule.NewPlanGenerator(), logger)

	investmentService := investment.NewService(investmentRepo, resolver, coordinator, recorder, queue, logger)
	investmentService.WithObserver(metrics)
	cashflowService := cashflow.NewService(cashflowRepo, resolver, coordinator, recorder, queue, logger)
	cashflowService.WithObserver(metrics)
	auditService := audit.NewService(dbpool)

	investmentHandler := investment.NewHandler(logger, investmentService, rbacMiddleware, dispatch)
	cashflowHandler := cashflow.NewHandler(logger, cashflowService, rbacMiddleware, dispatch)
	notificationHandler := notify.NewHTTPHandler(logger, queue, store, deliverer.Handle)
	auditHandler := audithttp.NewHandler(logger, auditService, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		InvestmentHandler:   investmentHandler,
		CashflowHandler:     cashflowHandler,
		NotificationHandler: notificationHandler,
		AuditHandler:        auditHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
