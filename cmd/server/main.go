// Package main is the entry point for the pharmadesk API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"pharmadesk/internal/domain/auth"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/domain/payments"
	"pharmadesk/internal/infrastructure/cache"
	"pharmadesk/internal/infrastructure/config"
	v1 "pharmadesk/internal/infrastructure/http/v1"
	"pharmadesk/internal/infrastructure/http/v1/handlers"
	"pharmadesk/internal/infrastructure/http/v1/middleware"
	"pharmadesk/internal/infrastructure/numerator"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmadesk/internal/infrastructure/storage/postgres/document_repo"
	"pharmadesk/internal/infrastructure/storage/postgres/inventory_repo"
	"pharmadesk/internal/infrastructure/storage/postgres/payment_repo"
	"pharmadesk/pkg/logger"
)

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

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting pharmadesk server", "env", cfg.AppEnv, "version", cfg.AppVersion)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	documentRepo := document_repo.NewDocumentRepo(txManager)
	batchRepo := inventory_repo.NewBatchRepo(txManager)
	itemRepo := catalog_repo.NewItemRepo(txManager)
	paymentRepo := payment_repo.NewPaymentRepo(txManager)

	health := handlers.NewHealthHandler(cfg.AppVersion)
	health.AddCheck("database", pool.Ping)
	health.SetStats(func() map[string]any {
		return map[string]any{"database": pool.Stats()}
	})

	// --- Batch snapshot cache ---
	var (
		batchIndex  inventory.Index = batchRepo
		invalidator batchInvalidator
	)
	if cfg.CacheEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnw("redis unreachable, batch lookups fall through to postgres", "addr", cfg.RedisAddr, "error", err)
		}
		batchCache := cache.NewBatchCache(rdb, batchRepo, cfg.BatchCacheTTL)
		batchIndex, invalidator = batchCache, batchCache
		health.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Infow("batch cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.BatchCacheTTL)
	}

	// --- Services ---
	numbers := numerator.New(pool)

	auditLog, err := postgres.NewAuditLog(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit log", "error", err)
	}
	outbox := postgres.NewOutboxPublisher(txManager)

	documentService := documents.NewService(documentRepo, batchIndex, itemRepo, batchRepo, numbers, txManager)
	registerDocumentHooks(documentService.Hooks(), outbox, auditLog, invalidator)

	paymentService := payments.NewService(paymentRepo, paymentRepo, numbers, txManager)
	registerPaymentHooks(paymentService.Hooks(), outbox, auditLog)

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret, cfg.JWTIssuer))

	var idempotency middleware.IdempotencyStore
	if cfg.IdempotencyEnabled {
		idempotency = postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Documents:    documentService,
		Payments:     paymentService,
		Audit:        auditLog,
		BatchIndex:   batchIndex,
		Batches:      batchRepo,
		Items:        itemRepo,
		Health:       health,
		Idempotency:  idempotency,
		PaymentRoles: cfg.PaymentRoles,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.AppPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	pool.LogStats(ctx)
	log.Info("server stopped")
}
