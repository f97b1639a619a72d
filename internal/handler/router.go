package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.POST("/open", h.OpenAccount)
			account.GET("/detail", h.GetAccount)
			account.POST("/deposit", h.Deposit)
			account.POST("/withdraw", h.Withdraw)
			account.POST("/status", h.UpdateStatus)
			account.POST("/close", h.CloseAccount)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
