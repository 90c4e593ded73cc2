package handler

import (
	"cross-border-escrow/internal/adapter/http/middleware"
	redisStore "cross-border-escrow/internal/adapter/storage/redis"
	"cross-border-escrow/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	EscrowSvc      ports.EscrowService
	DisputeSvc     ports.DisputeService
	MultiSigSvc    ports.MultiSigService
	TokenSvc       ports.TokenService
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

	// Deep health check, pings PostgreSQL and Redis
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

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	escrowHandler := NewEscrowHandler(deps.EscrowSvc)
	disputeHandler := NewDisputeHandler(deps.DisputeSvc)
	walletHandler := NewWalletHandler(deps.MultiSigSvc)

	escrows := v1.Group("/escrows", jwtAuth)
	{
		escrows.POST("", rl("escrows"), escrowHandler.Create)
		escrows.GET("", rl("read"), escrowHandler.List)
		escrows.GET("/:id", rl("read"), escrowHandler.Get)
		escrows.GET("/:id/history", rl("read"), escrowHandler.History)
		escrows.POST("/:id/accept", rl("escrow_action"), escrowHandler.Accept)
		escrows.POST("/:id/decline", rl("escrow_action"), escrowHandler.Decline)
		escrows.POST("/:id/deliver", rl("escrow_action"), escrowHandler.Deliver)
		escrows.POST("/:id/confirm", rl("escrow_action"), escrowHandler.Confirm)
		escrows.POST("/:id/dispute", rl("disputes"), escrowHandler.Dispute)
	}

	disputes := v1.Group("/disputes", jwtAuth)
	{
		disputes.GET("/:id", rl("read"), disputeHandler.Get)
		disputes.GET("/:id/tally", rl("read"), disputeHandler.Tally)
		disputes.POST("/:id/votes", rl("votes"), disputeHandler.CastVote)
		disputes.POST("/:id/resolve", rl("disputes"), disputeHandler.Resolve)
	}

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("", rl("wallets"), walletHandler.Create)
		wallets.GET("", rl("read"), walletHandler.List)
		wallets.GET("/:id", rl("read"), walletHandler.Get)
		wallets.POST("/:id/operations", rl("wallets"), walletHandler.Propose)
	}

	operations := v1.Group("/operations", jwtAuth)
	{
		operations.POST("/:id/approve", rl("wallets"), walletHandler.Approve)
		operations.POST("/:id/execute", rl("wallets"), walletHandler.Execute)
	}

	return r
}
