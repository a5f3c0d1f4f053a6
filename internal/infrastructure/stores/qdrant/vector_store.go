package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"imgcache/configs"
	"imgcache/internal/domain/models"
	"imgcache/internal/domain/repositories"
)

// VectorStore 基于Qdrant的语义向量索引实现
// 每个向量点携带bucket负载字段，查询时按bucket做等值过滤，
// 保证语义匹配只发生在分辨率/seed/水印完全一致的候选之间
type VectorStore struct {
	client *QdrantClient
	logger *slog.Logger
}

// 编译期接口检查
var _ repositories.VectorRepository = (*VectorStore)(nil)

// NewVectorStore 创建Qdrant向量索引
func NewVectorStore(ctx context.Context, config *configs.QdrantConfig, logger *slog.Logger) (*VectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := NewQdrantClient(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant vector store: %w", err)
	}

	return &VectorStore{
		client: client,
		logger: logger,
	}, nil
}

// Query 在指定bucket内检索最相似的topK个向量
func (s *VectorStore) Query(ctx context.Context, vector []float32, bucket string, topK int) ([]models.VectorQueryResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 1
	}

	// bucket等值过滤：不同分辨率桶之间的向量互不可见
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("bucket", bucket),
		},
	}

	results, err := s.client.SearchPoints(ctx, vector, uint64(topK), filter)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	converted := make([]models.VectorQueryResult, 0, len(results))
	for _, r := range results {
		converted = append(converted, models.VectorQueryResult{
			ID:      r.ID,
			Score:   float64(r.Score),
			Payload: r.Payload,
		})
	}

	return converted, nil
}

// Upsert 写入或覆盖一个向量记录
func (s *VectorStore) Upsert(ctx context.Context, record *models.VectorRecord) error {
	if record == nil {
		return fmt.Errorf("vector record cannot be nil")
	}
	if record.ID == "" {
		return fmt.Errorf("vector record id cannot be empty")
	}

	if err := s.client.UpsertPoint(ctx, record.ID, record.Vector, record.Payload()); err != nil {
		return fmt.Errorf("vector upsert failed: %w", err)
	}

	s.logger.DebugContext(ctx, "语义向量写入成功",
		"id", record.ID,
		"bucket", record.Bucket,
		"cache_key", record.CacheKey)
	return nil
}

// DeleteByIDs 按ID批量删除向量点
func (s *VectorStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := s.client.DeleteBatch(ctx, ids); err != nil {
		return fmt.Errorf("vector delete failed: %w", err)
	}
	return nil
}

// HealthCheck 健康检查
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// Close 关闭底层客户端
func (s *VectorStore) Close() error {
	return s.client.Close()
}
