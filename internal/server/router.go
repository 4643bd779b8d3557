package server

import (
	"gas-station/internal/handler"
	"gas-station/internal/handler/response"
	"gas-station/pkg/errno"
	"gas-station/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	Transaction *handler.TransactionHandler
	Governor    *handler.GovernorHandler
	Admin       *handler.AdminHandler
}

// adminAuth 管理接口的 Bearer Token 校验
func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("Authorization") != "Bearer "+token {
			response.Error(c, errno.ErrTokenInvalid)
			c.Abort()
			return
		}
		c.Next()
	}
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers, adminToken string) *gin.Engine {
	// 0. 初始化监控指标 (含业务指标)
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		tx := api.Group("/transactions")
		{
			tx.POST("", h.Transaction.Create)
			tx.POST("/estimate", h.Transaction.Estimate)
			tx.GET("/:id", h.Transaction.Get)
			tx.POST("/:id/sign_next", h.Transaction.SignNext)
			tx.DELETE("/:id", h.Transaction.Remove)
		}

		gov := api.Group("/governor")
		{
			gov.POST("/transfer", h.Governor.Transfer)
			gov.POST("/release", h.Governor.Release)
			gov.POST("/accept", h.Governor.Accept) // 其他 station 的握手回调
			gov.GET("/key", h.Governor.GetKey)
		}

		admin := api.Group("/admin", adminAuth(adminToken))
		{
			admin.POST("/chains", h.Admin.RegisterChain)
			admin.GET("/chains", h.Admin.ListChains)
			admin.DELETE("/chains/:chain_id", h.Admin.RemoveChain)
			admin.POST("/paymasters", h.Admin.AddPaymaster)
			admin.GET("/paymasters", h.Admin.ListPaymasters)
			admin.POST("/paymasters/:id/:action", h.Admin.MutatePaymaster)
			admin.POST("/whitelist", h.Admin.AddWhitelistEntry)
			admin.DELETE("/whitelist", h.Admin.RemoveWhitelistEntry)
			admin.GET("/whitelist", h.Admin.ListWhitelist)
			admin.POST("/whitelist/toggle", h.Admin.ToggleWhitelist)
			admin.GET("/fees", h.Admin.CollectedFee)
			admin.POST("/pause", h.Admin.Pause)
			admin.POST("/resume", h.Admin.Resume)
		}
	}

	return r
}
