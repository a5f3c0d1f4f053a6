package origin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"imgcache/configs"
	"imgcache/internal/domain/models"
)

// hopByHopHeaders 逐跳头，代理转发时必须剥离（RFC 7230 §6.1）
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// proxyOwnedHeaders 由代理自己设置的请求头，不从客户端透传
var proxyOwnedHeaders = map[string]bool{
	"X-Forwarded-For": true,
	"X-Real-Ip":       true,
	"X-Request-Id":    true,
	"Host":            true,
	"Content-Length":  true,
}

// Response 源站响应快照，body已完整读入内存
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Header      map[string]string
}

// Fetcher 生成源站客户端
// 缓存未命中时把请求原样转发到源站，附带客户端身份头
type Fetcher struct {
	baseURL *url.URL
	client  *http.Client
	logger  *slog.Logger
}

// NewFetcher 创建源站客户端
func NewFetcher(config *configs.OriginConfig, logger *slog.Logger) (*Fetcher, error) {
	if config == nil {
		return nil, fmt.Errorf("origin config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid origin base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin base url must be absolute: %s", config.BaseURL)
	}

	return &Fetcher{
		baseURL: base,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// Fetch 把请求转发到源站并完整读取响应
func (f *Fetcher) Fetch(ctx context.Context, req *models.GenerateRequest) (*Response, error) {
	target := f.buildTargetURL(req)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build origin request: %w", err)
	}

	f.applyClientIdentity(httpReq, req)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.logger.ErrorContext(ctx, "回源请求失败",
			"url", target,
			"request_id", req.RequestID,
			"error", err)
		return nil, fmt.Errorf("origin fetch failed: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read origin response: %w", err)
	}

	header := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		// Content-Type单独携带，Content-Length由响应写出时重新计算
		if hopByHopHeaders[name] || name == "Content-Type" || name == "Content-Length" {
			continue
		}
		header[name] = strings.Join(values, ", ")
	}

	f.logger.DebugContext(ctx, "回源请求完成",
		"url", target,
		"status", resp.StatusCode,
		"bytes", len(content),
		"request_id", req.RequestID)

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        content,
		Header:      header,
	}, nil
}

// buildTargetURL 拼接源站目标地址，保留原始路径和查询参数
func (f *Fetcher) buildTargetURL(req *models.GenerateRequest) string {
	target := *f.baseURL
	target.Path = strings.TrimSuffix(target.Path, "/") + req.Path
	target.RawQuery = req.Query.Encode()
	return target.String()
}

// applyClientIdentity 透传客户端请求头并补充身份头，源站据此做限流和统计
// 逐跳头和代理自管的头不从客户端透传
func (f *Fetcher) applyClientIdentity(httpReq *http.Request, req *models.GenerateRequest) {
	for name, values := range req.Header {
		if hopByHopHeaders[name] || proxyOwnedHeaders[name] {
			continue
		}
		httpReq.Header[name] = values
	}

	if req.ClientIP != "" {
		httpReq.Header.Set("X-Forwarded-For", req.ClientIP)
		httpReq.Header.Set("X-Real-IP", req.ClientIP)
	}
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}
}
