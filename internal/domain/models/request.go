package models

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// GenerateParams 定义了一次图片生成请求中影响输出像素的参数集合。
// 可选参数使用指针表示"调用方未显式提供"，以便分桶时只纳入显式值。
type GenerateParams struct {
	// Width 输出宽度（像素）
	Width int `json:"width"`

	// Height 输出高度（像素）
	Height int `json:"height"`

	// Model 生成模型名称
	Model string `json:"model"`

	// Seed 随机种子，nil 表示调用方未指定
	Seed *int64 `json:"seed,omitempty"`

	// NoLogo 是否去除水印，nil 表示调用方未指定
	NoLogo *bool `json:"nologo,omitempty"`

	// Image 输入参考图（base64 或引用地址），空表示无图片条件
	Image string `json:"image,omitempty"`

	// NoCache 调用方显式要求绕过缓存
	NoCache bool `json:"no_cache,omitempty"`
}

// HasImage 判断请求是否携带输入参考图。
func (p *GenerateParams) HasImage() bool {
	return p.Image != ""
}

// ImageFingerprint 计算输入参考图的内容指纹。
// 返回完整的 sha256 十六进制串，分桶时由调用方截取前缀。
func (p *GenerateParams) ImageFingerprint() string {
	if p.Image == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(p.Image))
	return hex.EncodeToString(sum[:])
}

// ParamDefaults 参数解析时使用的默认值。
type ParamDefaults struct {
	Width  int
	Height int
	Model  string
}

// ParseGenerateParams 从查询参数中解析生成参数。
// 未提供的 width/height/model 使用默认值填充，seed/nologo 保持"未指定"状态。
func ParseGenerateParams(query url.Values, defaults ParamDefaults) GenerateParams {
	params := GenerateParams{
		Width:  defaults.Width,
		Height: defaults.Height,
		Model:  defaults.Model,
	}

	if w, err := strconv.Atoi(query.Get("width")); err == nil && w > 0 {
		params.Width = w
	}

	if h, err := strconv.Atoi(query.Get("height")); err == nil && h > 0 {
		params.Height = h
	}

	if model := strings.TrimSpace(query.Get("model")); model != "" {
		params.Model = model
	}

	if query.Has("seed") {
		if seed, err := strconv.ParseInt(query.Get("seed"), 10, 64); err == nil {
			params.Seed = &seed
		}
	}

	if query.Has("nologo") {
		nologo := parseBoolParam(query.Get("nologo"))
		params.NoLogo = &nologo
	}

	params.Image = query.Get("image")
	params.NoCache = query.Has("no-cache")

	return params
}

// parseBoolParam 解析布尔型查询参数，空值视为 true（裸标志位写法）。
func parseBoolParam(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "1", "true", "yes":
		return true
	default:
		return false
	}
}

// GenerateRequest 定义了进入混合缓存编排器的请求快照。
// 由 HTTP 层构建，领域层不再接触 gin 上下文。
type GenerateRequest struct {
	// Method HTTP方法
	Method string `json:"method"`

	// Path 解码后的请求路径（/prompt/{promptText}）
	Path string `json:"path"`

	// Prompt 从路径中提取的提示词，空表示无法提取
	Prompt string `json:"prompt"`

	// Query 原始查询参数
	Query url.Values `json:"-"`

	// Params 解析后的生成参数
	Params GenerateParams `json:"params"`

	// Header 原始请求头（用于转发客户端身份）
	Header http.Header `json:"-"`

	// Body 请求体（POST 时透传给源站）
	Body []byte `json:"-"`

	// ClientIP 客户端IP
	ClientIP string `json:"client_ip"`

	// RequestID 请求ID
	RequestID string `json:"request_id"`

	// OriginalURL 原始请求完整URL（存档进缓存元数据）
	OriginalURL string `json:"original_url"`
}
