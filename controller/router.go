package controller

import (
	"mini-app-service/controller/handler"
	"mini-app-service/controller/middleware"
	"mini-app-service/controller/respond"
	"mini-app-service/docs"
	"mini-app-service/service/approval_service"
	"mini-app-service/service/points_service"
	"mini-app-service/service/verification_service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterConfig services and settings the router is built from
type RouterConfig struct {
	Verification *verification_service.VerificationService
	Approval     *approval_service.ApprovalService
	Points       *points_service.PointsService
	RateLimiter  *middleware.RateLimiter

	JwtSecret      string
	PathPrefix     string // Path prefix for reverse proxy (e.g., "/miniapp")
	SwaggerBaseUrl string
}

// SetupRouter setup api router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	if cfg.SwaggerBaseUrl != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerBaseUrl
	}
	if cfg.PathPrefix != "" {
		docs.SwaggerInfo.BasePath = cfg.PathPrefix
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * 3600, // 12 hours
	}))

	r.Use(respond.TimingMiddleware())

	developerHandler := handler.NewDeveloperHandler(cfg.Verification, cfg.Approval, cfg.Points)
	appHandler := handler.NewAppHandler(cfg.Approval)
	adminHandler := handler.NewAdminHandler(cfg.Verification, cfg.Approval)

	root := r.Group(cfg.PathPrefix)

	v1 := root.Group("/api/v1")
	{
		// public queries
		v1.GET("/apps/lookup", appHandler.Lookup)
		v1.GET("/stats", appHandler.GetStats)

		authed := v1.Group("")
		authed.Use(middleware.RequireIdentity(cfg.JwtSecret))
		if cfg.RateLimiter != nil {
			authed.Use(cfg.RateLimiter.Handler())
		}

		authed.POST("/apps", appHandler.Submit)

		me := authed.Group("/developers/me")
		{
			me.GET("", developerHandler.GetMe)
			me.POST("/wallet-challenge", developerHandler.StartWalletChallenge)
			me.POST("/wallet-proof", developerHandler.ProveWallet)
			me.POST("/domain-challenge", developerHandler.StartChallenge)
			me.POST("/domain-challenge/confirm", developerHandler.ConfirmChallenge)
			me.GET("/apps", developerHandler.ListMyApps)
			me.GET("/points", developerHandler.GetMyPoints)
		}

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireStaff(cfg.Verification))
		{
			admin.GET("/apps", adminHandler.ReviewQueue)
			admin.POST("/apps/contract-approval", adminHandler.ApproveContract)
			admin.POST("/apps/approve", adminHandler.Approve)
			admin.POST("/apps/reject", adminHandler.Reject)
			admin.POST("/developers/:id/verify", adminHandler.GrantVerified)
			admin.POST("/developers/:id/role", adminHandler.SetRole)
		}
	}

	root.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "mini-app-service",
		})
	})

	root.GET("/metrics", gin.WrapH(promhttp.Handler()))

	root.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.InstanceName("swagger")))

	return r
}
