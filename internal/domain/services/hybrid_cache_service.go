package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"imgcache/configs"
	"imgcache/internal/domain/keys"
	"imgcache/internal/domain/models"
	"imgcache/internal/domain/repositories"
	"imgcache/internal/origin"
	"imgcache/pkg/logger"
)

// OriginClient 源站客户端接口
type OriginClient interface {
	Fetch(ctx context.Context, req *models.GenerateRequest) (*origin.Response, error)
}

// TaskSubmitter 写回任务提交接口
// Submit 返回false表示任务未入队，调用方需要降级处理
type TaskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// HybridCacheService 混合缓存编排器
// 按 精确缓存 -> 语义缓存 -> 回源 的顺序处理请求，
// 任何缓存层故障都降级到下一层，请求本身永不因缓存失败而失败
type HybridCacheService struct {
	objectRepo repositories.ObjectRepository
	semantic   *SemanticService
	originCli  OriginClient
	runner     TaskSubmitter
	keyRules   keys.KeyRules
	config     *configs.Config
	logger     logger.Logger

	exactHits     atomic.Int64
	semanticHits  atomic.Int64
	originFetches atomic.Int64
	writeBehind   atomic.Int64
	writeErrors   atomic.Int64
	startedAt     int64
}

// NewHybridCacheService 创建混合缓存编排器
func NewHybridCacheService(
	objectRepo repositories.ObjectRepository,
	semantic *SemanticService,
	originCli OriginClient,
	runner TaskSubmitter,
	config *configs.Config,
	log logger.Logger,
) *HybridCacheService {
	if log == nil {
		log = logger.Default()
	}

	rules := keys.KeyRules{
		ExcludedParams:   config.Keys.ExcludedParams,
		PinnedSeedModels: config.Keys.PinnedSeedModels,
		MaxKeyBytes:      config.Keys.MaxKeyBytes,
	}

	return &HybridCacheService{
		objectRepo: objectRepo,
		semantic:   semantic,
		originCli:  originCli,
		runner:     runner,
		keyRules:   rules,
		config:     config,
		logger:     log,
		startedAt:  time.Now().Unix(),
	}
}

// Handle 处理一次图片生成请求，返回完整的缓存结论
func (s *HybridCacheService) Handle(ctx context.Context, req *models.GenerateRequest) (*models.CacheOutcome, error) {
	if !s.cacheable(req) {
		return s.Passthrough(ctx, req)
	}

	cacheKey := keys.DeriveCacheKey(req.Path, req.Query, s.keyRules)

	// 第一层：精确缓存
	if outcome := s.tryExact(ctx, req, cacheKey); outcome != nil {
		return outcome, nil
	}

	// 第二层：语义缓存
	var debug models.SemanticDebug
	if s.config.Semantic.Enabled {
		outcome, semDebug := s.trySemantic(ctx, req, cacheKey)
		if outcome != nil {
			return outcome, nil
		}
		debug = semDebug
	}

	// 第三层：回源
	return s.fetchOrigin(ctx, req, cacheKey, debug)
}

// cacheable 判断请求是否走缓存路径
func (s *HybridCacheService) cacheable(req *models.GenerateRequest) bool {
	if req.Prompt == "" {
		return false
	}
	if req.Params.NoCache {
		return false
	}
	return req.Method == http.MethodGet || req.Method == http.MethodPost
}

// tryExact 精确缓存查找，存储故障按未命中处理
func (s *HybridCacheService) tryExact(ctx context.Context, req *models.GenerateRequest, cacheKey string) *models.CacheOutcome {
	entry, err := s.objectRepo.Get(ctx, cacheKey)
	if err != nil {
		s.logger.WarnContext(ctx, "精确缓存读取失败，降级到下一层",
			"cache_key", cacheKey,
			"request_id", req.RequestID,
			"error", err)
		return nil
	}
	if entry == nil {
		return nil
	}

	s.exactHits.Add(1)
	s.logger.InfoContext(ctx, "精确缓存命中",
		"cache_key", cacheKey,
		"request_id", req.RequestID)

	return &models.CacheOutcome{
		Tier:        models.TierExact,
		StatusCode:  http.StatusOK,
		ContentType: entry.ContentType,
		Body:        entry.Content,
		CacheKey:    cacheKey,
	}
}

// trySemantic 语义缓存查找
// 第二个返回值携带检索的可观测信息，未命中时随回源响应返回
func (s *HybridCacheService) trySemantic(ctx context.Context, req *models.GenerateRequest, cacheKey string) (*models.CacheOutcome, models.SemanticDebug) {
	match, miss := s.semantic.FindMatch(ctx, req.Prompt, req.Params)
	if match == nil {
		if miss == nil {
			// 检索未执行
			return nil, models.SemanticDebug{Performed: false}
		}
		return nil, models.SemanticDebug{
			Performed:      true,
			BestSimilarity: miss.BestSimilarity,
			Threshold:      miss.Threshold,
		}
	}

	debug := models.SemanticDebug{
		Performed:      true,
		BestSimilarity: &match.Similarity,
		Threshold:      match.Threshold,
	}

	entry, err := s.semantic.ResolveEntry(ctx, match, func(fn func(ctx context.Context) error) {
		s.submitOrRun(ctx, "cleanup-stale-vector", fn)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "语义命中条目读取失败，降级回源",
			"cache_key", match.CacheKey,
			"request_id", req.RequestID,
			"error", err)
		return nil, debug
	}
	if entry == nil {
		return nil, debug
	}

	s.semanticHits.Add(1)
	return &models.CacheOutcome{
		Tier:        models.TierSemantic,
		StatusCode:  http.StatusOK,
		ContentType: entry.ContentType,
		Body:        entry.Content,
		CacheKey:    match.CacheKey,
		Similarity:  match.Similarity,
		Bucket:      match.Bucket,
		Semantic:    debug,
	}, debug
}

// fetchOrigin 回源并在成功时异步写回两级缓存
func (s *HybridCacheService) fetchOrigin(ctx context.Context, req *models.GenerateRequest, cacheKey string, debug models.SemanticDebug) (*models.CacheOutcome, error) {
	resp, err := s.originCli.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("origin fetch failed: %w", err)
	}
	s.originFetches.Add(1)

	if s.shouldStore(resp) {
		s.scheduleWriteBehind(ctx, req, cacheKey, resp)
	}

	return &models.CacheOutcome{
		Tier:        models.TierOrigin,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		Header:      resp.Header,
		CacheKey:    cacheKey,
		Semantic:    debug,
	}, nil
}

// Passthrough 直接转发到源站，完全绕过缓存
func (s *HybridCacheService) Passthrough(ctx context.Context, req *models.GenerateRequest) (*models.CacheOutcome, error) {
	resp, err := s.originCli.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("origin fetch failed: %w", err)
	}
	s.originFetches.Add(1)

	return &models.CacheOutcome{
		Tier:        models.TierOrigin,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		Header:      resp.Header,
	}, nil
}

// shouldStore 判断源站响应是否允许写入缓存
func (s *HybridCacheService) shouldStore(resp *origin.Response) bool {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	if len(resp.Body) == 0 {
		return false
	}
	for _, prefix := range s.config.Cache.CacheableContentTypes {
		if strings.HasPrefix(resp.ContentType, prefix) {
			return true
		}
	}
	return false
}

// scheduleWriteBehind 把缓存写入任务提交到后台队列
// 队列满时降级为同步执行，保证写入必然发生
func (s *HybridCacheService) scheduleWriteBehind(ctx context.Context, req *models.GenerateRequest, cacheKey string, resp *origin.Response) {
	entry := &models.CacheEntry{
		Content:     resp.Body,
		ContentType: resp.ContentType,
		Metadata: models.EntryMetadata{
			CacheKey:       cacheKey,
			OriginalURL:    req.OriginalURL,
			CachedAt:       models.NowISO8601(),
			ClientIP:       req.ClientIP,
			UserAgent:      req.Header.Get("User-Agent"),
			Referer:        req.Header.Get("Referer"),
			AcceptLanguage: req.Header.Get("Accept-Language"),
			Method:         req.Method,
			RequestTime:    models.NowISO8601(),
			RequestID:      req.RequestID,
		},
	}

	prompt := req.Prompt
	params := req.Params

	s.writeBehind.Add(1)
	s.submitOrRun(ctx, "write-behind-"+cacheKey, func(taskCtx context.Context) error {
		if err := s.objectRepo.Put(taskCtx, cacheKey, entry); err != nil {
			s.writeErrors.Add(1)
			return fmt.Errorf("write-behind put failed: %w", err)
		}
		if s.config.Semantic.Enabled {
			if err := s.semantic.Record(taskCtx, prompt, cacheKey, params); err != nil {
				s.writeErrors.Add(1)
				return err
			}
		}
		return nil
	})
}

// submitOrRun 提交后台任务，入队失败时同步执行兜底
func (s *HybridCacheService) submitOrRun(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if s.runner != nil && s.runner.Submit(name, fn) {
		return
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		s.logger.ErrorContext(ctx, "同步兜底任务执行失败", "task", name, "error", err)
	}
}

// Delete 删除缓存条目及其向量，返回条目先前是否存在
func (s *HybridCacheService) Delete(ctx context.Context, cacheKey string) (bool, error) {
	existed, err := s.objectRepo.Delete(ctx, cacheKey)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}

	// 无论条目是否存在都尝试清理向量，保持两边一致
	if s.config.Semantic.Enabled {
		if err := s.semantic.DeleteVector(ctx, cacheKey); err != nil {
			s.logger.WarnContext(ctx, "向量删除失败", "cache_key", cacheKey, "error", err)
		}
	}

	return existed, nil
}

// Inspect 查看缓存条目的元数据，不取回内容
func (s *HybridCacheService) Inspect(ctx context.Context, cacheKey string) (*models.EntryMetadata, error) {
	return s.objectRepo.Head(ctx, cacheKey)
}

// Stats 返回进程内计数器快照
func (s *HybridCacheService) Stats() models.CacheStats {
	return models.CacheStats{
		ExactHits:     s.exactHits.Load(),
		SemanticHits:  s.semanticHits.Load(),
		OriginFetches: s.originFetches.Load(),
		WriteBehind:   s.writeBehind.Load(),
		WriteErrors:   s.writeErrors.Load(),
		StartedAt:     s.startedAt,
	}
}
