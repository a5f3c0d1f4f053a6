package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imgcache/pkg/logger"
)

// RequestIDKey 请求ID在Context中的键名
const RequestIDKey = "request_id"

// LoggingConfig 日志中间件配置
type LoggingConfig struct {
	// SkipPaths 跳过日志记录的路径（如健康检查接口）
	SkipPaths []string
	// Logger 日志器实例
	Logger logger.Logger
}

// LoggingMiddleware 返回HTTP日志记录中间件
// 为每个请求生成请求ID，记录开始/完成日志和缓存命中层级
func LoggingMiddleware(config *LoggingConfig) gin.HandlerFunc {
	if config == nil {
		config = &LoggingConfig{
			SkipPaths: []string{"/v1/health"},
		}
	}
	if config.Logger == nil {
		config.Logger = logger.GetDefault()
	}

	return func(c *gin.Context) {
		// 生成请求ID并传入下游context
		requestID := uuid.New().String()
		c.Set(RequestIDKey, requestID)
		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		if shouldSkipPath(c.Request.URL.Path, config.SkipPaths) {
			c.Next()
			return
		}

		startTime := time.Now()

		config.Logger.InfoContext(ctx, "HTTP请求开始",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
			"user_agent", c.GetHeader("User-Agent"),
		)

		c.Next()

		duration := time.Since(startTime)

		// 图片响应体较大，只记录大小而不捕获内容
		config.Logger.InfoContext(ctx, "HTTP请求完成",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"duration_ms", float64(duration.Nanoseconds())/1e6,
			"response_size", c.Writer.Size(),
			"cache_tier", c.Writer.Header().Get("x-cache-type"),
			"client_ip", c.ClientIP(),
		)

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				config.Logger.ErrorContext(ctx, "HTTP请求处理错误",
					"request_id", requestID,
					"error", err.Error(),
				)
			}
		}
	}
}

// shouldSkipPath 检查是否应该跳过某个路径的日志记录
func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// GetRequestID 从Context中获取请求ID
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		return requestID.(string)
	}
	return ""
}
