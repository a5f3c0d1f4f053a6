package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"imgcache/internal/app/middleware"
	"imgcache/internal/domain/services"
	"imgcache/pkg/logger"
	"imgcache/pkg/status"
)

// AdminHandler 缓存管理接口处理器
// 提供条目删除、元数据查看、统计和健康检查能力
type AdminHandler struct {
	service *services.HybridCacheService
	logger  logger.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(service *services.HybridCacheService, log logger.Logger) *AdminHandler {
	if log == nil {
		log = logger.GetDefault()
	}
	return &AdminHandler{
		service: service,
		logger:  log,
	}
}

// APIResponse 统一的API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// DeleteCache 删除缓存条目及其向量
// DELETE /v1/cache/:key
func (h *AdminHandler) DeleteCache(c *gin.Context) {
	ctx := c.Request.Context()
	cacheKey := c.Param("key")
	requestID := middleware.GetRequestID(c)

	if cacheKey == "" {
		h.respondWithError(c, status.ErrCodeInvalidParam, "缓存键不能为空")
		return
	}

	existed, err := h.service.Delete(ctx, cacheKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "缓存条目删除失败",
			"cache_key", cacheKey,
			"request_id", requestID,
			"error", err.Error())
		h.respondWithError(c, status.ErrCodeInternal, "缓存删除失败")
		return
	}

	if !existed {
		h.respondWithError(c, status.ErrCodeNotFound, "缓存条目不存在")
		return
	}

	h.logger.InfoContext(ctx, "缓存条目已删除", "cache_key", cacheKey, "request_id", requestID)
	h.respondWithSuccess(c, gin.H{"cache_key": cacheKey, "deleted": true}, "删除成功")
}

// InspectCache 查看缓存条目的元数据
// GET /v1/cache/:key
func (h *AdminHandler) InspectCache(c *gin.Context) {
	ctx := c.Request.Context()
	cacheKey := c.Param("key")

	if cacheKey == "" {
		h.respondWithError(c, status.ErrCodeInvalidParam, "缓存键不能为空")
		return
	}

	meta, err := h.service.Inspect(ctx, cacheKey)
	if err != nil {
		h.respondWithError(c, status.ErrCodeInternal, "缓存查询失败")
		return
	}
	if meta == nil {
		h.respondWithError(c, status.ErrCodeNotFound, "缓存条目不存在")
		return
	}

	h.respondWithSuccess(c, meta, "查询成功")
}

// GetStats 获取进程内缓存统计
// GET /v1/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	h.respondWithSuccess(c, h.service.Stats(), "查询成功")
}

// HealthCheck 健康检查
// GET /v1/health
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	h.respondWithSuccess(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}, "服务正常")
}

// respondWithSuccess 返回成功响应
func (h *AdminHandler) respondWithSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Code:      int(status.CodeOK),
		Message:   message,
		Data:      data,
		RequestID: middleware.GetRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// respondWithError 返回错误响应
func (h *AdminHandler) respondWithError(c *gin.Context, code status.StatusCode, message string) {
	c.JSON(code.HTTPStatus(), APIResponse{
		Success:   false,
		Code:      int(code),
		Message:   message,
		RequestID: middleware.GetRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}
