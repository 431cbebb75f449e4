package handler

import (
	"marketplace-wallet-engine/config"
	"marketplace-wallet-engine/internal/adapter/http/middleware"
	redisStore "marketplace-wallet-engine/internal/adapter/storage/redis"
	"marketplace-wallet-engine/internal/core/domain"
	"marketplace-wallet-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Gateway        config.GatewayConfig
	AdminTokenHash string

	SettlementSvc ports.SettlementService
	WithdrawalSvc ports.WithdrawalService
	CreditsSvc    ports.CreditsService
	PayoutSvc     ports.PayoutService
	ReportingSvc  ports.ReportingService

	SigSvc     ports.SignatureService
	NonceStore ports.NonceStore
	TokenSvc   ports.TokenService
	HashSvc    ports.HashService

	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
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

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- HMAC-authenticated routes (payment gateway) ---
	hmacAuth := middleware.HMACAuth(deps.Gateway, deps.SigSvc, deps.NonceStore, deps.Logger)
	settlementHandler := NewSettlementHandler(deps.SettlementSvc, deps.CreditsSvc)
	settlements := v1.Group("/settlements", hmacAuth)
	{
		settlements.POST("", rl("settlements"), settlementHandler.RecordSettlement)
		settlements.POST("/credit-purchases/:id/confirm", rl("settlements"), settlementHandler.ConfirmCreditPurchase)
	}

	// --- JWT-authenticated routes (seller wallet) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.ReportingSvc, deps.WithdrawalSvc, deps.CreditsSvc, deps.PayoutSvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet_read"), middleware.RequireCapability(domain.CapWalletRead), walletHandler.GetSummary)
		wallet.GET("/transactions", rl("wallet_read"), middleware.RequireCapability(domain.CapWalletRead), walletHandler.ListTransactions)
		wallet.POST("/withdrawals", rl("withdrawals"), middleware.RequireCapability(domain.CapWalletWithdraw), walletHandler.RequestWithdrawal)
		wallet.GET("/credits/packages", rl("credits"), middleware.RequireCapability(domain.CapWalletRead), walletHandler.ListCreditPackages)
		wallet.POST("/credits/purchase", rl("credits"), middleware.RequireCapability(domain.CapCreditsManage), walletHandler.PurchaseCredits)
		wallet.POST("/credits/use", rl("credits"), middleware.RequireCapability(domain.CapCreditsManage), walletHandler.UseCredits)
		wallet.GET("/payout-destination", rl("payout"), middleware.RequireCapability(domain.CapWalletRead), walletHandler.GetPayoutDestination)
		wallet.PUT("/payout-destination", rl("payout"), middleware.RequireCapability(domain.CapPayoutWrite), walletHandler.UpsertPayoutDestination)
	}

	// --- Admin routes (service token or admin JWT) ---
	adminAuth := middleware.AdminAuth(deps.TokenSvc, deps.HashSvc, deps.AdminTokenHash, deps.Logger)
	adminHandler := NewAdminHandler(deps.WithdrawalSvc, deps.PayoutSvc, deps.SettlementSvc)

	admin := v1.Group("/admin", adminAuth)
	{
		admin.POST("/withdrawals/:id/process", rl("admin"), middleware.RequireCapability(domain.CapAdminWithdrawals), adminHandler.ProcessWithdrawal)
		admin.POST("/withdrawals/:id/complete", rl("admin"), middleware.RequireCapability(domain.CapAdminWithdrawals), adminHandler.CompleteWithdrawal)
		admin.POST("/accounts/:id/payout-destination/unlock", rl("admin"), middleware.RequireCapability(domain.CapAdminPayouts), adminHandler.UnlockPayoutDestination)
		admin.POST("/accounts/:id/adjustments", rl("admin"), middleware.RequireCapability(domain.CapAdminAdjust), adminHandler.RecordAdjustment)
	}

	return r
}
