package repositories

import (
	"context"

	"imgcache/internal/domain/models"
)

// VectorRepository 向量索引仓储接口
// 负责嵌入向量的近邻检索与管理，桶等值过滤是唯一的检索过滤条件
type VectorRepository interface {
	// Query 桶内最近邻检索
	// 只返回 metadata.bucket 等于指定桶的候选，按相似度降序
	Query(ctx context.Context, vector []float32, bucket string, topK int) ([]models.VectorQueryResult, error)

	// Upsert 写入或覆盖一条向量记录
	// 点ID由缓存键派生，重复写入幂等
	Upsert(ctx context.Context, record *models.VectorRecord) error

	// DeleteByIDs 按点ID批量删除向量记录
	DeleteByIDs(ctx context.Context, ids []string) error

	// Close 释放索引连接
	Close() error
}
