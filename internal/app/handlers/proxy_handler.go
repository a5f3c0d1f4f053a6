package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"imgcache/configs"
	"imgcache/internal/app/middleware"
	"imgcache/internal/domain/models"
	"imgcache/internal/domain/services"
	"imgcache/pkg/logger"
)

// immutableCacheControl 缓存内容永不变化，允许客户端和CDN无限期缓存
const immutableCacheControl = "public, max-age=31536000, immutable"

// ProxyHandler 图片生成代理处理器
// 负责把HTTP请求翻译成领域请求、调用混合缓存编排器、把结论写回响应
type ProxyHandler struct {
	service *services.HybridCacheService
	config  *configs.CacheConfig
	logger  logger.Logger
}

// NewProxyHandler 创建代理处理器
func NewProxyHandler(service *services.HybridCacheService, config *configs.CacheConfig, log logger.Logger) *ProxyHandler {
	if log == nil {
		log = logger.GetDefault()
	}
	return &ProxyHandler{
		service: service,
		config:  config,
		logger:  log,
	}
}

// GenerateImage 处理图片生成请求
// GET/POST /prompt/*prompt
func (h *ProxyHandler) GenerateImage(c *gin.Context) {
	ctx := c.Request.Context()
	req := h.buildRequest(c)

	outcome, err := h.service.Handle(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "请求处理失败",
			"request_id", req.RequestID,
			"path", req.Path,
			"error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "image generation failed",
			"request_id": req.RequestID,
		})
		return
	}

	h.writeOutcome(c, outcome)
}

// Passthrough 处理未匹配路由，直接转发到源站
func (h *ProxyHandler) Passthrough(c *gin.Context) {
	ctx := c.Request.Context()
	req := h.buildRequest(c)

	outcome, err := h.service.Passthrough(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "透传请求失败",
			"request_id", req.RequestID,
			"path", req.Path,
			"error", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "upstream request failed",
			"request_id": req.RequestID,
		})
		return
	}

	h.writeOutcome(c, outcome)
}

// buildRequest 把gin上下文转换为领域请求快照
func (h *ProxyHandler) buildRequest(c *gin.Context) *models.GenerateRequest {
	query := c.Request.URL.Query()
	params := models.ParseGenerateParams(query, models.ParamDefaults{
		Width:  h.config.DefaultWidth,
		Height: h.config.DefaultHeight,
		Model:  h.config.DefaultModel,
	})

	var body []byte
	if c.Request.Body != nil && c.Request.Method != http.MethodGet {
		limited := io.LimitReader(c.Request.Body, h.config.MaxBodyBytes)
		body, _ = io.ReadAll(limited)
	}

	return &models.GenerateRequest{
		Method:      c.Request.Method,
		Path:        decodedPath(c),
		Prompt:      extractPrompt(c),
		Query:       query,
		Params:      params,
		Header:      c.Request.Header,
		Body:        body,
		ClientIP:    c.ClientIP(),
		RequestID:   middleware.GetRequestID(c),
		OriginalURL: c.Request.URL.String(),
	}
}

// writeOutcome 把缓存结论翻译成HTTP响应
func (h *ProxyHandler) writeOutcome(c *gin.Context, outcome *models.CacheOutcome) {
	// 透传源站的部分响应头
	for name, value := range outcome.Header {
		c.Header(name, value)
	}

	// 回源响应不携带 x-cache-type，源站自己的响应头原样透传
	switch outcome.Tier {
	case models.TierExact:
		c.Header("x-cache", "HIT")
		c.Header("x-cache-type", "exact")
	case models.TierSemantic:
		c.Header("x-cache", "HIT")
		c.Header("x-cache-type", "semantic")
		c.Header("x-semantic-similarity", fmt.Sprintf("%.3f", outcome.Similarity))
		c.Header("x-semantic-bucket", outcome.Bucket)
	default:
		c.Header("x-cache", "MISS")
	}

	// 语义检索的可观测信息，未命中时也返回，便于线上调阈值
	if outcome.Semantic.Performed {
		c.Header("x-semantic-search", "performed")
		if outcome.Semantic.BestSimilarity != nil {
			c.Header("x-semantic-best-similarity", fmt.Sprintf("%.3f", *outcome.Semantic.BestSimilarity))
		}
		c.Header("x-semantic-threshold", fmt.Sprintf("%.3f", outcome.Semantic.Threshold))
	} else if outcome.Tier == models.TierOrigin {
		c.Header("x-semantic-search", "skipped")
	}

	// 缓存内容不可变，允许客户端和CDN无限期缓存
	if outcome.Tier == models.TierExact || outcome.Tier == models.TierSemantic {
		c.Header("Cache-Control", immutableCacheControl)
	}

	contentType := outcome.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(outcome.StatusCode, contentType, outcome.Body)
}

// decodedPath 取URL解码后的请求路径
func decodedPath(c *gin.Context) string {
	if p, err := url.PathUnescape(c.Request.URL.EscapedPath()); err == nil {
		return p
	}
	return c.Request.URL.Path
}

// extractPrompt 从 /prompt/{promptText} 路径中提取提示词
func extractPrompt(c *gin.Context) string {
	prompt := c.Param("prompt")
	prompt = strings.TrimPrefix(prompt, "/")
	if decoded, err := url.PathUnescape(prompt); err == nil {
		prompt = decoded
	}
	return strings.TrimSpace(prompt)
}
