package models

import (
	"strings"
	"time"
	"unicode"
)

// MetadataFieldLimit 单个元数据字段的最大长度（字节）。
// 对象存储对自定义元数据有总量限制，逐字段封顶使存储开销可预测。
const MetadataFieldLimit = 256

// CacheEntry 定义了精确缓存中的存储单元：响应内容加元数据。
// 条目一经写入即不可变，新的缓存键只会产生新条目。
type CacheEntry struct {
	// Content 响应体原始字节
	Content []byte `json:"content"`

	// ContentType 响应的Content-Type
	ContentType string `json:"content_type"`

	// Metadata 条目溯源元数据
	Metadata EntryMetadata `json:"metadata"`
}

// EntryMetadata 定义了缓存条目的溯源元数据。
// 记录首次生成该条目的请求信息，逐字段截断后持久化，空字段不存储。
type EntryMetadata struct {
	// CacheKey 条目对应的缓存键
	CacheKey string `json:"cache_key,omitempty"`

	// OriginalURL 原始请求URL
	OriginalURL string `json:"original_url,omitempty"`

	// CachedAt 写入时间（ISO-8601）
	CachedAt string `json:"cached_at,omitempty"`

	// ClientIP 客户端IP
	ClientIP string `json:"client_ip,omitempty"`

	// UserAgent 客户端User-Agent
	UserAgent string `json:"user_agent,omitempty"`

	// Referer 客户端Referer
	Referer string `json:"referer,omitempty"`

	// AcceptLanguage 客户端Accept-Language
	AcceptLanguage string `json:"accept_language,omitempty"`

	// Method HTTP方法
	Method string `json:"method,omitempty"`

	// RequestTime 请求发生时间（ISO-8601）
	RequestTime string `json:"request_time,omitempty"`

	// RequestID 请求ID
	RequestID string `json:"request_id,omitempty"`
}

// ToMap 将元数据导出为键值映射，用于对象存储的自定义元数据。
// 每个字段先做清洗与截断，清洗后为空的字段直接省略。
func (m *EntryMetadata) ToMap() map[string]string {
	fields := map[string]string{
		"cache-key":       m.CacheKey,
		"original-url":    m.OriginalURL,
		"cached-at":       m.CachedAt,
		"client-ip":       m.ClientIP,
		"user-agent":      m.UserAgent,
		"referer":         m.Referer,
		"accept-language": m.AcceptLanguage,
		"method":          m.Method,
		"request-time":    m.RequestTime,
		"request-id":      m.RequestID,
	}

	out := make(map[string]string, len(fields))
	for key, value := range fields {
		cleaned := SanitizeMetadataValue(value)
		if cleaned == "" {
			continue
		}
		out[key] = cleaned
	}
	return out
}

// EntryMetadataFromMap 从键值映射还原元数据，是 ToMap 的逆操作。
func EntryMetadataFromMap(values map[string]string) EntryMetadata {
	return EntryMetadata{
		CacheKey:       values["cache-key"],
		OriginalURL:    values["original-url"],
		CachedAt:       values["cached-at"],
		ClientIP:       values["client-ip"],
		UserAgent:      values["user-agent"],
		Referer:        values["referer"],
		AcceptLanguage: values["accept-language"],
		Method:         values["method"],
		RequestTime:    values["request-time"],
		RequestID:      values["request-id"],
	}
}

// SanitizeMetadataValue 清洗元数据字段值。
// 去除首尾空白与不可打印字符，并截断到 MetadataFieldLimit 字节。
func SanitizeMetadataValue(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(value))

	if len(cleaned) > MetadataFieldLimit {
		cleaned = cleaned[:MetadataFieldLimit]
	}
	return cleaned
}

// CacheTier 缓存层级标识。
type CacheTier string

const (
	// TierExact 精确缓存命中
	TierExact CacheTier = "exact"
	// TierSemantic 语义缓存命中
	TierSemantic CacheTier = "semantic"
	// TierOrigin 回源
	TierOrigin CacheTier = "origin"
)

// SemanticDebug 记录一次请求中语义检索的可观测信息。
// 即使未命中也随响应头返回，便于线上调阈值。
type SemanticDebug struct {
	// Performed 本次请求是否实际执行了语义检索
	Performed bool `json:"performed"`

	// BestSimilarity 观测到的最佳相似度，nil 表示桶内无候选
	BestSimilarity *float64 `json:"best_similarity,omitempty"`

	// Threshold 本次生效的相似度阈值
	Threshold float64 `json:"threshold,omitempty"`
}

// CacheOutcome 定义了编排器处理一次请求后的完整结论。
// HTTP 层只负责把它翻译成响应，不参与任何缓存决策。
type CacheOutcome struct {
	// Tier 响应来源层级
	Tier CacheTier `json:"tier"`

	// StatusCode 响应状态码
	StatusCode int `json:"status_code"`

	// ContentType 响应Content-Type
	ContentType string `json:"content_type"`

	// Body 响应体
	Body []byte `json:"-"`

	// Header 透传的源站响应头（仅回源时填充）
	Header map[string]string `json:"-"`

	// CacheKey 本次请求派生出的缓存键
	CacheKey string `json:"cache_key,omitempty"`

	// Similarity 语义命中时的相似度
	Similarity float64 `json:"similarity,omitempty"`

	// Bucket 语义命中时的隔离桶
	Bucket string `json:"bucket,omitempty"`

	// Semantic 语义检索的可观测信息
	Semantic SemanticDebug `json:"semantic"`
}

// CacheStats 进程内缓存计数器快照。
type CacheStats struct {
	ExactHits     int64 `json:"exact_hits"`
	SemanticHits  int64 `json:"semantic_hits"`
	OriginFetches int64 `json:"origin_fetches"`
	WriteBehind   int64 `json:"write_behind"`
	WriteErrors   int64 `json:"write_errors"`
	StartedAt     int64 `json:"started_at"`
}

// NowISO8601 返回当前时间的 ISO-8601 字符串，元数据时间戳统一用它。
func NowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339)
}
