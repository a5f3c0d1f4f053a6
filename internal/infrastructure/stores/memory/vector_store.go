package memory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"imgcache/internal/domain/models"
	"imgcache/internal/domain/repositories"
)

// VectorStore 内存向量索引实现
// 用于开发和测试环境，线性扫描 + 余弦相似度，不适合大规模生产数据
type VectorStore struct {
	mu      sync.RWMutex
	records map[string]*models.VectorRecord
	logger  *slog.Logger
}

var _ repositories.VectorRepository = (*VectorStore)(nil)

// NewVectorStore 创建内存向量索引
func NewVectorStore(logger *slog.Logger) *VectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{
		records: make(map[string]*models.VectorRecord),
		logger:  logger,
	}
}

// Query 在指定bucket内线性扫描，按余弦相似度降序返回topK个结果
func (s *VectorStore) Query(ctx context.Context, vector []float32, bucket string, topK int) ([]models.VectorQueryResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.VectorQueryResult, 0, topK)
	for _, record := range s.records {
		if record.Bucket != bucket {
			continue
		}
		score, ok := cosineSimilarity(vector, record.Vector)
		if !ok {
			continue
		}
		results = append(results, models.VectorQueryResult{
			ID:      record.ID,
			Score:   score,
			Payload: record.Payload(),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Upsert 写入或覆盖一个向量记录
func (s *VectorStore) Upsert(ctx context.Context, record *models.VectorRecord) error {
	if record == nil {
		return fmt.Errorf("vector record cannot be nil")
	}
	if record.ID == "" {
		return fmt.Errorf("vector record id cannot be empty")
	}

	clone := *record
	clone.Vector = append([]float32(nil), record.Vector...)

	s.mu.Lock()
	s.records[record.ID] = &clone
	s.mu.Unlock()
	return nil
}

// DeleteByIDs 按ID批量删除
func (s *VectorStore) DeleteByIDs(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Close 关闭索引，清空数据
func (s *VectorStore) Close() error {
	s.mu.Lock()
	s.records = make(map[string]*models.VectorRecord)
	s.mu.Unlock()
	return nil
}

// Len 当前向量点数量
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// cosineSimilarity 计算余弦相似度，维度不齐或零向量时返回false
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
