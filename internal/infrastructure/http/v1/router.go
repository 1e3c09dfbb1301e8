// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/infrastructure/http/v1/handlers"
	"pharmadesk/internal/infrastructure/http/v1/middleware"
	"pharmadesk/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Documents handlers.DocumentService
	Payments  handlers.PaymentService
	Audit     handlers.AuditReader

	// BatchIndex serves single batch lookups (cached when Redis is configured)
	BatchIndex inventory.Index
	Batches    handlers.BatchLister
	Items      handlers.ItemSearcher

	Health *handlers.HealthHandler

	// Idempotency is nil when idempotency is disabled
	Idempotency middleware.IdempotencyStore

	// PaymentRoles restricts payment endpoints; empty allows every authenticated user
	PaymentRoles []string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Recovery sits inside ErrorHandler so a panic still gets a JSON body.
	router.Use(middleware.Trace(cfg.Logger))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	if cfg.Health != nil {
		health := router.Group("/health")
		health.GET("/live", cfg.Health.Live)
		health.GET("/ready", cfg.Health.Ready)
		health.GET("/info", cfg.Health.Info)
	}

	protected := router.Group("/api/v1")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		protected.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerDocumentRoutes(protected, handlers.NewDocumentHandler(base, cfg.Documents, cfg.Audit))
	registerInventoryRoutes(protected, handlers.NewInventoryHandler(base, cfg.BatchIndex, cfg.Batches, cfg.Items))
	registerPaymentRoutes(protected, handlers.NewPaymentHandler(base, cfg.Payments, cfg.Audit), cfg.PaymentRoles)

	return router
}

func registerDocumentRoutes(rg *gin.RouterGroup, h *handlers.DocumentHandler) {
	docs := rg.Group("/documents")
	docs.GET("", h.List)
	docs.GET("/schema/:kind", h.Schema)
	docs.POST("/lines/calculate", h.CalculateLine)
	docs.POST("/:kind/draft", h.Draft)
	docs.POST("/:kind", h.Create)
	docs.GET("/:id", h.Get)
	docs.GET("/:id/history", h.History)
}

func registerInventoryRoutes(rg *gin.RouterGroup, h *handlers.InventoryHandler) {
	rg.GET("/inventory/batches", h.ListBatches)
	rg.GET("/inventory/batches/:itemId/:batchNo", h.GetBatch)
	rg.GET("/items", h.SearchItems)
}

func registerPaymentRoutes(rg *gin.RouterGroup, h *handlers.PaymentHandler, roles []string) {
	var guard []gin.HandlerFunc
	if len(roles) > 0 {
		guard = append(guard, middleware.RequireRole(roles...))
	}

	suppliers := rg.Group("/suppliers/:supplierId", guard...)
	suppliers.GET("/bills", h.Bills)
	suppliers.GET("/credit-note", h.CreditNote)

	pay := rg.Group("/payments", guard...)
	pay.POST("/preview", h.Preview)
	pay.POST("", h.Create)
	pay.GET("/:id", h.Get)
	pay.GET("/:id/history", h.History)
}
