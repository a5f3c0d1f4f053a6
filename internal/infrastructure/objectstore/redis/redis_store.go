package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"imgcache/configs"
	"imgcache/internal/domain/models"
	"imgcache/internal/domain/repositories"
)

// ObjectStore 基于Redis的对象存储实现
// 条目以JSON信封形式存储，内容与元数据同键同生命周期
type ObjectStore struct {
	client *redis.Client
	config *configs.RedisConfig
	logger *slog.Logger
}

var _ repositories.ObjectRepository = (*ObjectStore)(nil)

// entryEnvelope Redis中的存储格式
type entryEnvelope struct {
	Content     []byte            `json:"content"`
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewObjectStore 创建Redis对象存储并验证连接
func NewObjectStore(ctx context.Context, config *configs.RedisConfig, logger *slog.Logger) (*ObjectStore, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorContext(ctx, "Redis连接失败", "addr", config.Addr, "error", err)
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	logger.InfoContext(ctx, "Redis对象存储初始化成功", "addr", config.Addr, "prefix", config.Prefix)

	return &ObjectStore{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// key 拼接带前缀的Redis键
func (s *ObjectStore) key(k string) string {
	if s.config.Prefix == "" {
		return k
	}
	return s.config.Prefix + ":" + k
}

// Get 读取缓存条目，键不存在视为干净未命中
func (s *ObjectStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var envelope entryEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// 损坏条目按未命中处理，由写回路径覆盖
		s.logger.WarnContext(ctx, "Redis缓存条目反序列化失败，按未命中处理", "key", key, "error", err)
		return nil, nil
	}

	return &models.CacheEntry{
		Content:     envelope.Content,
		ContentType: envelope.ContentType,
		Metadata:    models.EntryMetadataFromMap(envelope.Metadata),
	}, nil
}

// Put 写入缓存条目
func (s *ObjectStore) Put(ctx context.Context, key string, entry *models.CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	envelope := entryEnvelope{
		Content:     entry.Content,
		ContentType: entry.ContentType,
		Metadata:    entry.Metadata.ToMap(),
	}

	raw, err := json.Marshal(&envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), raw, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete 删除缓存条目，返回条目先前是否存在
func (s *ObjectStore) Delete(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del failed: %w", err)
	}
	return count > 0, nil
}

// Head 只读取条目元数据
func (s *ObjectStore) Head(ctx context.Context, key string) (*models.EntryMetadata, error) {
	entry, err := s.Get(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}
	meta := entry.Metadata
	return &meta, nil
}

// Ping 检查Redis连接
func (s *ObjectStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭Redis连接
func (s *ObjectStore) Close() error {
	return s.client.Close()
}
