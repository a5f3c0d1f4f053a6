package models

import (
	"github.com/google/uuid"
)

// vectorIDNamespace 向量点ID的UUID命名空间。
// Qdrant 的点ID必须是UUID或整数，这里从缓存键派生确定性UUID，
// 保证向量记录永远可以回溯到、并随同删除其对应的缓存条目。
var vectorIDNamespace = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

// VectorIDForCacheKey 从缓存键派生向量点的确定性UUID。
func VectorIDForCacheKey(cacheKey string) string {
	return uuid.NewSHA1(vectorIDNamespace, []byte(cacheKey)).String()
}

// VectorRecord 定义了向量索引中的一条记录。
// 向量来自归一化提示词的嵌入，载荷携带回查缓存条目所需的全部信息。
type VectorRecord struct {
	// ID 点ID，由缓存键派生
	ID string `json:"id"`

	// Vector 嵌入向量
	Vector []float32 `json:"vector"`

	// CacheKey 对应的精确缓存键
	CacheKey string `json:"cache_key"`

	// Bucket 分辨率隔离桶
	Bucket string `json:"bucket"`

	// Model 生成模型
	Model string `json:"model"`

	// Width 输出宽度
	Width int `json:"width"`

	// Height 输出高度
	Height int `json:"height"`

	// Seed 随机种子（未指定时省略）
	Seed *int64 `json:"seed,omitempty"`

	// NoLogo 去水印标志（未指定时省略）
	NoLogo *bool `json:"nologo,omitempty"`

	// ImageFingerprint 输入参考图指纹前缀（无图片时省略）
	ImageFingerprint string `json:"image,omitempty"`

	// CreatedAt 写入时间（ISO-8601）
	CreatedAt string `json:"created_at"`
}

// Payload 将记录的元数据导出为向量库载荷。
func (r *VectorRecord) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"cache_key":  r.CacheKey,
		"bucket":     r.Bucket,
		"model":      r.Model,
		"width":      r.Width,
		"height":     r.Height,
		"created_at": r.CreatedAt,
	}

	if r.Seed != nil {
		payload["seed"] = *r.Seed
	}
	if r.NoLogo != nil {
		payload["nologo"] = *r.NoLogo
	}
	if r.ImageFingerprint != "" {
		payload["image"] = r.ImageFingerprint
	}
	return payload
}

// VectorQueryResult 定义了一次最近邻检索返回的单个候选。
type VectorQueryResult struct {
	// ID 点ID
	ID string `json:"id"`

	// Score 相似度分数
	Score float64 `json:"score"`

	// Payload 记录载荷
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// CacheKeyFromPayload 从候选载荷中提取缓存键，缺失时返回空串。
func (r *VectorQueryResult) CacheKeyFromPayload() string {
	if key, ok := r.Payload["cache_key"].(string); ok {
		return key
	}
	return ""
}

// SemanticMatch 定义了一次达到阈值的语义命中。
type SemanticMatch struct {
	// CacheKey 命中条目的缓存键
	CacheKey string `json:"cache_key"`

	// VectorID 命中的向量点ID
	VectorID string `json:"vector_id"`

	// Similarity 相似度分数
	Similarity float64 `json:"similarity"`

	// Bucket 检索使用的隔离桶
	Bucket string `json:"bucket"`

	// Threshold 本次生效的阈值
	Threshold float64 `json:"threshold"`
}

// SemanticMiss 定义了执行过检索但未达到阈值的结论。
// BestSimilarity 为 nil 表示桶内没有任何候选，仅用于可观测性。
type SemanticMiss struct {
	// BestSimilarity 桶内最佳观测相似度
	BestSimilarity *float64 `json:"best_similarity,omitempty"`

	// Threshold 本次生效的阈值
	Threshold float64 `json:"threshold"`

	// Bucket 检索使用的隔离桶
	Bucket string `json:"bucket"`
}
