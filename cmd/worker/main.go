// Package main is the entry point for the pharmadesk background worker.
// It relays the outbox and expires idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmadesk/internal/infrastructure/cache"
	"pharmadesk/internal/infrastructure/config"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/pkg/logger"
)

const cleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log.WithComponent("worker")))
	defer cancel()

	log.Info("starting pharmadesk worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.ApplicationName = "pharmadesk-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	var invalidator batchInvalidator
	if cfg.CacheEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		invalidator = cache.NewBatchCache(rdb, nil, cfg.BatchCacheTTL)
	}

	worker := &Worker{
		relay:        postgres.NewOutboxRelay(txManager, cfg.OutboxBatchSize, newEventHandler(invalidator)),
		idempotency:  postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL),
		pollInterval: cfg.OutboxPollInterval,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

type outboxRelay interface {
	ProcessBatch(ctx context.Context) (int, error)
}

type idempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Worker polls the outbox and periodically removes expired idempotency keys.
type Worker struct {
	relay        outboxRelay
	idempotency  idempotencyCleaner
	pollInterval time.Duration
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// drain relays full batches back to back until the outbox runs dry.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			logger.Error(ctx, "outbox relay failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
		logger.Debug(ctx, "relayed outbox batch", "count", n)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	n, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		logger.Warn(ctx, "idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		logger.Info(ctx, "cleaned up idempotency keys", "count", n)
	}
}
