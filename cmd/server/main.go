package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/ZeelJavia/txnzero/internal/adapter/http"
	"github.com/ZeelJavia/txnzero/internal/adapter/http/handler"
	"github.com/ZeelJavia/txnzero/internal/adapter/messaging/redisstream"
	postgresRepo "github.com/ZeelJavia/txnzero/internal/adapter/repository/postgres"
	redisRepo "github.com/ZeelJavia/txnzero/internal/adapter/repository/redis"
	"github.com/ZeelJavia/txnzero/internal/infrastructure/config"
	"github.com/ZeelJavia/txnzero/internal/infrastructure/eventpublisher"
	"github.com/ZeelJavia/txnzero/internal/infrastructure/logger"
	"github.com/ZeelJavia/txnzero/internal/infrastructure/metrics"
	"github.com/ZeelJavia/txnzero/internal/infrastructure/postgres"
	"github.com/ZeelJavia/txnzero/internal/infrastructure/reconciler"
	"github.com/ZeelJavia/txnzero/internal/infrastructure/redis"
	"github.com/ZeelJavia/txnzero/internal/lock"
	"github.com/ZeelJavia/txnzero/internal/router"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zl := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = zl

	ctx := context.Background()

	// Migrations run against the primary before any pool opens.
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Without a replica the primary serves both roles; the router still
	// keeps the read/write split explicit at every call site.
	replica := pool
	if cfg.DatabaseReplicaURL != "" {
		replica, err = postgres.NewPool(ctx, cfg.DatabaseReplicaURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres replica")
		}
		defer replica.Close()
		log.Info().Msg("connected to postgres replica")
	}
	dbRouter := router.New(pool, replica, cfg.StalenessWindow)

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountStore := postgresRepo.NewAccountStore(dbRouter)
	journal := postgresRepo.NewLedgerJournal(dbRouter)
	txnRepo := postgresRepo.NewTransactionRepo(dbRouter)
	outboxRepo := postgresRepo.NewOutboxRepo(dbRouter)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()
	locker := lock.NewManager(cfg.LockTimeout)

	mets := metrics.New(prometheus.DefaultRegisterer)

	// Use cases
	transferUC := usecase.NewTransferUseCase(
		txManager, accountStore, journal, txnRepo, outboxRepo, locker, idGen, mets,
		usecase.TransferConfig{
			VersionRetries:    cfg.VersionRetries,
			LockRetries:       cfg.LockRetries,
			LockBackoff:       cfg.LockBackoff,
			DownstreamTimeout: cfg.DownstreamTimeout,
			AllowFrozenCredit: cfg.AllowFrozenCredit,
		})
	accountUC := usecase.NewAccountUseCase(accountStore, idGen)
	statementUC := usecase.NewStatementUseCase(accountStore, journal, txnRepo)
	reconcileUC := usecase.NewReconcileUseCase(transferUC, usecase.ReconcileConfig{
		MinAge:    cfg.ReconcileMinAge,
		GiveUpAge: cfg.ReconcileGiveUp,
		StaleAge:  cfg.ReconcileStaleAge,
		BatchSize: cfg.ReconcileBatch,
	})

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	publisher := redisstream.NewPublisher(redisClient, redisstream.Config{
		Prefix:     cfg.NotifyStream,
		Partitions: cfg.NotifyPartitions,
	})
	relay := eventpublisher.NewRelay(eventpublisher.Config{
		Outbox:    outboxRepo,
		Publisher: publisher,
		Metrics:   mets,
		Logger:    slog.Default(),
		BatchSize: cfg.OutboxBatch,
		Interval:  cfg.OutboxInterval,
		Retention: cfg.OutboxRetention,
	})
	go func() {
		if err := relay.Start(workerCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("outbox relay stopped")
		}
	}()

	sweeper := reconciler.NewWorker(reconciler.Config{
		Reconcile: reconcileUC,
		Metrics:   mets,
		Logger:    slog.Default(),
		Interval:  cfg.ReconcileInterval,
	})
	go func() {
		if err := sweeper.Start(workerCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("reconciliation worker stopped")
		}
	}()

	// HTTP
	mux := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(accountUC),
		TransferHandler:  handler.NewTransferHandler(transferUC, statementUC),
		StatementHandler: handler.NewStatementHandler(statementUC),
		ReconcileHandler: handler.NewReconcileHandler(reconcileUC),
		HealthHandler:    handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore: idempotencyStore,
		Logger:           zl,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
