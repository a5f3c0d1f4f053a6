package stores

import (
	"context"
	"fmt"
	"log/slog"

	"imgcache/configs"
	"imgcache/internal/domain/repositories"
	"imgcache/internal/infrastructure/stores/memory"
	"imgcache/internal/infrastructure/stores/qdrant"
)

// NewVectorRepository 根据配置创建向量索引实例
// 支持的类型：qdrant（生产）、memory（开发/测试）
func NewVectorRepository(ctx context.Context, config *configs.VectorIndexConfig, logger *slog.Logger) (repositories.VectorRepository, error) {
	if config == nil {
		return nil, fmt.Errorf("vector index config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch config.Type {
	case "qdrant":
		return qdrant.NewVectorStore(ctx, &config.Qdrant, logger)
	case "memory":
		logger.WarnContext(ctx, "使用内存向量索引，数据不会持久化")
		return memory.NewVectorStore(logger), nil
	case "milvus", "elasticsearch":
		// 预留的提供方，当前版本未启用
		return nil, fmt.Errorf("vector index provider %s is not enabled", config.Type)
	default:
		return nil, fmt.Errorf("unsupported vector index type: %s", config.Type)
	}
}
