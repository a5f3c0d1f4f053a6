package server

import (
	"github.com/gin-gonic/gin"

	"imgcache/internal/app/handlers"
	"imgcache/internal/app/middleware"
	"imgcache/pkg/logger"
)

// SetupRoutes 配置并注册 HTTP 服务器的所有路由规则。
// 生成入口走 /prompt 前缀，管理接口在 /v1 分组下，未匹配的路径透传到源站。
func SetupRoutes(engine *gin.Engine, proxyHandler *handlers.ProxyHandler, adminHandler *handlers.AdminHandler, log logger.Logger) {
	setupMiddleware(engine, log)

	// 图片生成入口 - 提示词编码在路径里
	engine.GET("/prompt/*prompt", proxyHandler.GenerateImage)
	engine.POST("/prompt/*prompt", proxyHandler.GenerateImage)

	// 管理接口分组
	v1 := engine.Group("/v1")
	cache := v1.Group("/cache")
	// 查看缓存条目元数据
	cache.GET("/:key", adminHandler.InspectCache)
	// 删除缓存条目及其向量
	cache.DELETE("/:key", adminHandler.DeleteCache)

	// 进程内统计
	v1.GET("/stats", adminHandler.GetStats)
	// 健康检查
	v1.GET("/health", adminHandler.HealthCheck)

	// 未匹配的路径直接透传到源站
	engine.NoRoute(proxyHandler.Passthrough)
}

// setupMiddleware 设置全局中间件
func setupMiddleware(engine *gin.Engine, log logger.Logger) {
	// 恢复中间件 - 捕获panic并返回500错误
	engine.Use(gin.Recovery())

	// 跨域中间件 - 图片地址会被第三方页面引用
	engine.Use(middleware.CORSMiddleware())

	// 日志中间件 - 记录请求日志并生成请求ID
	loggingConfig := &middleware.LoggingConfig{
		// 跳过健康检查路径的日志记录，减少日志噪音
		SkipPaths: []string{
			"/v1/health",
		},
		Logger: log,
	}
	engine.Use(middleware.LoggingMiddleware(loggingConfig))
}
