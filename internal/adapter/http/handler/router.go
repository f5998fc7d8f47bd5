package handler

import (
	"retailer-portal/config"
	"retailer-portal/internal/adapter/http/middleware"
	"retailer-portal/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	SubmissionSvc  ports.SubmissionService
	SettlementSvc  ports.SettlementService
	HealthCheckers []ports.HealthChecker
	JWT            config.JWTConfig
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	v1 := r.Group("/api/v1")

	settlementHandler := NewSettlementHandler(deps.SettlementSvc)

	// Gateway redirect target. Unauthenticated: the retailer arrives here
	// from the provider's site, and the order id alone drives a
	// re-verified reconciliation.
	v1.GET("/payments/callback", settlementHandler.Callback)

	jwtAuth := middleware.JWTAuth(deps.JWT.Secret, deps.JWT.Issuer, deps.Logger)

	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.SettlementSvc)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.POST("/topup", walletHandler.TopUp)
		wallet.GET("/transactions", walletHandler.ListTransactions)
	}

	submissionHandler := NewSubmissionHandler(deps.SubmissionSvc)
	submissions := v1.Group("/submissions", jwtAuth)
	{
		submissions.POST("", submissionHandler.Purchase)
		submissions.GET("", submissionHandler.List)
		submissions.GET("/:id", submissionHandler.Get)
		submissions.POST("/:id/retry-payment", submissionHandler.RetryPayment)
		submissions.POST("/:id/documents", submissionHandler.ReUploadDocuments)
	}

	admin := v1.Group("/admin", jwtAuth, middleware.AdminOnly())
	{
		admin.PUT("/submissions/:id/status", submissionHandler.AdminUpdateStatus)
		admin.POST("/wallets/:retailer_id/credit", walletHandler.AdminCredit)
		admin.POST("/reconcile/:order_id", settlementHandler.Reconcile)
	}

	return r
}
