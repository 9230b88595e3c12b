package router

import (
	"fmt"
	"strings"

	"github.com/melodiemoment/api/internal/config"
	adminhandlers "github.com/melodiemoment/api/internal/http/handlers/admin"
	publichandlers "github.com/melodiemoment/api/internal/http/handlers/public"
	handlershared "github.com/melodiemoment/api/internal/http/handlers/shared"
	"github.com/melodiemoment/api/internal/http/response"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if err := handlershared.RegisterValidators(); err != nil {
		logger.Errorw("router_register_validators_failed", "error", err)
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "mm"
	}
	redisClient := c.Cache.Redis()
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
	}
	orderRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:order", redisPrefix),
		WindowSeconds: cfg.Security.OrderRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.OrderRateLimit.MaxAttempts,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log, c.Metrics))
	r.Use(CORSMiddleware(cfg.CORS))

	// 本地存储时直接提供交付文件
	if strings.EqualFold(strings.TrimSpace(cfg.Storage.Provider), "local") && cfg.Storage.LocalDir != "" {
		r.Static("/uploads", cfg.Storage.LocalDir)
	}

	r.GET("/health", func(ctx *gin.Context) {
		response.Success(ctx, gin.H{"status": "ok"})
	})
	if c.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		// 顾客接口
		api.GET("/captcha", publicHandler.GetImageCaptcha)
		api.POST("/orders/preview", publicHandler.PreviewOrder)
		api.POST("/orders", RateLimitMiddleware(redisClient, orderRule, KeyByIPAndJSONField("customerEmail")), publicHandler.CreateOrder)
		api.GET("/orders/:orderNumber/status", publicHandler.GetOrderStatus)
		api.GET("/checkout/status", publicHandler.GetOrderStatusBySession)

		// 支付回调
		api.POST("/webhook", publicHandler.StripeWebhook)

		admin := api.Group("/admin")
		{
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.Login)
			admin.POST("/logout", adminHandler.Logout)

			authorized := admin.Group("")
			authorized.Use(AdminSessionMiddleware(c.AuthService))
			{
				// 订单
				authorized.GET("/orders", adminHandler.ListOrders)
				authorized.GET("/orders/prioritize", adminHandler.PrioritizeUnanalyzed)
				authorized.POST("/orders/prioritize", adminHandler.PrioritizeOrders)
				authorized.POST("/orders/batch", adminHandler.BatchOrders)
				authorized.GET("/orders/:orderNumber", adminHandler.GetOrder)
				authorized.PATCH("/orders/:orderNumber", adminHandler.UpdateOrder)
				authorized.POST("/deliver", adminHandler.DeliverOrder)

				// 交付文件
				authorized.POST("/upload", adminHandler.UploadDeliverable)
				authorized.DELETE("/deliverables/:id", adminHandler.DeleteDeliverable)
				authorized.GET("/orders/:orderNumber/deliverables", adminHandler.ListDeliverables)

				// 生成
				authorized.POST("/orders/:orderNumber/generate/prompt", adminHandler.GenerateSongPrompt)
				authorized.POST("/orders/:orderNumber/generate/cover", adminHandler.GenerateCover)
				authorized.POST("/orders/:orderNumber/generate/pdf", adminHandler.GenerateLyricsPDF)

				// 邮件活动
				authorized.GET("/campaigns", adminHandler.ListCampaigns)
				authorized.POST("/campaigns", adminHandler.CreateCampaign)
				authorized.POST("/campaigns/:id/enroll", adminHandler.EnrollOrder)
			}
		}
	}

	r.NoRoute(func(ctx *gin.Context) {
		response.NotFound(ctx, response.MsgNotFound)
	})

	return r
}
