package memory

import (
	"context"
	"fmt"
	"sync"

	"imgcache/internal/domain/models"
	"imgcache/internal/domain/repositories"
)

// ObjectStore 内存对象存储实现
// 用于开发和测试环境，进程重启后数据丢失
type ObjectStore struct {
	mu      sync.RWMutex
	entries map[string]*models.CacheEntry
}

var _ repositories.ObjectRepository = (*ObjectStore)(nil)

// NewObjectStore 创建内存对象存储
func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		entries: make(map[string]*models.CacheEntry),
	}
}

// Get 读取缓存条目，不存在时返回 (nil, nil)
func (s *ObjectStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return cloneEntry(entry), nil
}

// Put 写入缓存条目，后写覆盖先写
func (s *ObjectStore) Put(ctx context.Context, key string, entry *models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	s.mu.Lock()
	s.entries[key] = cloneEntry(entry)
	s.mu.Unlock()
	return nil
}

// Delete 删除缓存条目，返回条目先前是否存在
func (s *ObjectStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	s.mu.Lock()
	_, existed := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	return existed, nil
}

// Head 只读取条目元数据，不存在时返回 (nil, nil)
func (s *ObjectStore) Head(ctx context.Context, key string) (*models.EntryMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	meta := entry.Metadata
	return &meta, nil
}

// Close 关闭存储，清空数据
func (s *ObjectStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]*models.CacheEntry)
	s.mu.Unlock()
	return nil
}

// Len 当前条目数量
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cloneEntry 深拷贝条目，避免调用方修改内部状态
func cloneEntry(entry *models.CacheEntry) *models.CacheEntry {
	clone := &models.CacheEntry{
		Content:     append([]byte(nil), entry.Content...),
		ContentType: entry.ContentType,
		Metadata:    entry.Metadata,
	}
	return clone
}
