package objectstore

import (
	"context"
	"fmt"
	"log/slog"

	"imgcache/configs"
	"imgcache/internal/domain/repositories"
	"imgcache/internal/infrastructure/objectstore/memory"
	"imgcache/internal/infrastructure/objectstore/redis"
	"imgcache/internal/infrastructure/objectstore/s3"
)

// NewObjectRepository 根据配置创建对象存储实例
// 支持的类型：s3（生产）、redis、memory（开发/测试）
func NewObjectRepository(ctx context.Context, config *configs.ObjectStoreConfig, logger *slog.Logger) (repositories.ObjectRepository, error) {
	if config == nil {
		return nil, fmt.Errorf("object store config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch config.Type {
	case "s3":
		return s3.NewObjectStore(ctx, &config.S3, logger)
	case "redis":
		return redis.NewObjectStore(ctx, &config.Redis, logger)
	case "memory":
		logger.WarnContext(ctx, "使用内存对象存储，数据不会持久化")
		return memory.NewObjectStore(), nil
	default:
		return nil, fmt.Errorf("unsupported object store type: %s", config.Type)
	}
}
