package repositories

import (
	"context"

	"imgcache/internal/domain/models"
)

// ObjectRepository 精确缓存的对象存储仓储接口
// 以缓存键寻址完整的响应内容与元数据，put-by-key 视为幂等操作
type ObjectRepository interface {
	// Get 读取缓存条目
	// 条目不存在时返回 (nil, nil)，错误只在存储本身失败时返回
	Get(ctx context.Context, key string) (*models.CacheEntry, error)

	// Put 写入缓存条目
	// 并发的相同写入无害，后写覆盖先写
	Put(ctx context.Context, key string, entry *models.CacheEntry) error

	// Delete 删除缓存条目
	// 返回条目先前是否存在
	Delete(ctx context.Context, key string) (bool, error)

	// Head 只读取条目元数据，不取回内容
	// 条目不存在时返回 (nil, nil)
	Head(ctx context.Context, key string) (*models.EntryMetadata, error)

	// Close 释放存储连接
	Close() error
}
