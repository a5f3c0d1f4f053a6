package services

import (
	"context"
	"fmt"

	"imgcache/configs"
	"imgcache/internal/domain/keys"
	"imgcache/internal/domain/models"
	"imgcache/internal/domain/repositories"
	"imgcache/pkg/logger"
)

// PromptEmbedder 提示词嵌入接口
// 失败时返回nil，调用方据此跳过语义层
type PromptEmbedder interface {
	Embed(ctx context.Context, prompt string) []float32
}

// SemanticService 语义缓存服务
// 负责嵌入提示词、在隔离桶内做最近邻检索、按阈值判定命中，
// 以及在回源成功后把新条目的向量写入索引
type SemanticService struct {
	embedder   PromptEmbedder
	vectorRepo repositories.VectorRepository
	objectRepo repositories.ObjectRepository
	config     *configs.SemanticConfig
	logger     logger.Logger
}

// NewSemanticService 创建语义缓存服务
func NewSemanticService(
	embedder PromptEmbedder,
	vectorRepo repositories.VectorRepository,
	objectRepo repositories.ObjectRepository,
	config *configs.SemanticConfig,
	log logger.Logger,
) *SemanticService {
	if log == nil {
		log = logger.Default()
	}
	return &SemanticService{
		embedder:   embedder,
		vectorRepo: vectorRepo,
		objectRepo: objectRepo,
		config:     config,
		logger:     log,
	}
}

// FindMatch 在指定桶内检索语义近邻并按阈值判定
// 返回 (nil, nil) 表示语义检索未执行（嵌入失败或提示词为空），
// 返回 (nil, miss) 表示执行了检索但未达到阈值
func (s *SemanticService) FindMatch(ctx context.Context, prompt string, params models.GenerateParams) (*models.SemanticMatch, *models.SemanticMiss) {
	vector := s.embedder.Embed(ctx, prompt)
	if vector == nil {
		// 嵌入失败不影响请求，直接跳过语义层
		return nil, nil
	}

	bucket := keys.DeriveBucket(params)
	threshold := s.config.EffectiveThreshold(len(keys.NormalizePrompt(prompt)))

	queryCtx := ctx
	if s.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.config.QueryTimeout)
		defer cancel()
	}

	results, err := s.vectorRepo.Query(queryCtx, vector, bucket, 1)
	if err != nil {
		s.logger.WarnContext(ctx, "语义检索失败，按跳过处理", "bucket", bucket, "error", err)
		return nil, nil
	}

	if len(results) == 0 {
		// 桶内无候选
		return nil, &models.SemanticMiss{Threshold: threshold, Bucket: bucket}
	}

	best := results[0]
	if best.Score < threshold {
		score := best.Score
		s.logger.DebugContext(ctx, "语义候选未达到阈值",
			"bucket", bucket,
			"similarity", best.Score,
			"threshold", threshold)
		return nil, &models.SemanticMiss{BestSimilarity: &score, Threshold: threshold, Bucket: bucket}
	}

	cacheKey := best.CacheKeyFromPayload()
	if cacheKey == "" {
		// 载荷损坏的点视为未命中，留给后台巡检清理
		s.logger.WarnContext(ctx, "语义候选载荷缺少缓存键", "vector_id", best.ID, "bucket", bucket)
		score := best.Score
		return nil, &models.SemanticMiss{BestSimilarity: &score, Threshold: threshold, Bucket: bucket}
	}

	s.logger.InfoContext(ctx, "语义缓存命中",
		"cache_key", cacheKey,
		"bucket", bucket,
		"similarity", best.Score,
		"threshold", threshold)

	return &models.SemanticMatch{
		CacheKey:   cacheKey,
		VectorID:   best.ID,
		Similarity: best.Score,
		Bucket:     bucket,
		Threshold:  threshold,
	}, nil
}

// ResolveEntry 取回语义命中对应的缓存条目
// 向量存在但条目已被删除时返回 (nil, nil)，并异步清理悬空向量
func (s *SemanticService) ResolveEntry(ctx context.Context, match *models.SemanticMatch, cleanup func(fn func(ctx context.Context) error)) (*models.CacheEntry, error) {
	entry, err := s.objectRepo.Get(ctx, match.CacheKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load semantic hit entry: %w", err)
	}
	if entry == nil {
		// 向量指向的条目已不存在，清理悬空向量后按未命中处理
		s.logger.WarnContext(ctx, "语义命中指向已删除的条目，清理悬空向量",
			"cache_key", match.CacheKey,
			"vector_id", match.VectorID)
		vectorID := match.VectorID
		if cleanup != nil {
			cleanup(func(ctx context.Context) error {
				return s.vectorRepo.DeleteByIDs(ctx, []string{vectorID})
			})
		}
		return nil, nil
	}
	return entry, nil
}

// Record 把新缓存条目的提示词向量写入索引
// 嵌入失败时静默跳过，该条目只参与精确匹配
func (s *SemanticService) Record(ctx context.Context, prompt, cacheKey string, params models.GenerateParams) error {
	vector := s.embedder.Embed(ctx, prompt)
	if vector == nil {
		s.logger.DebugContext(ctx, "嵌入失败，跳过向量写入", "cache_key", cacheKey)
		return nil
	}

	record := &models.VectorRecord{
		ID:        models.VectorIDForCacheKey(cacheKey),
		Vector:    vector,
		CacheKey:  cacheKey,
		Bucket:    keys.DeriveBucket(params),
		Model:     params.Model,
		Width:     params.Width,
		Height:    params.Height,
		Seed:      params.Seed,
		NoLogo:    params.NoLogo,
		CreatedAt: models.NowISO8601(),
	}
	if params.HasImage() {
		fp := params.ImageFingerprint()
		if len(fp) > 8 {
			fp = fp[:8]
		}
		record.ImageFingerprint = fp
	}

	if err := s.vectorRepo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to record semantic vector: %w", err)
	}
	return nil
}

// DeleteVector 删除缓存键对应的向量点，条目删除时随同调用
func (s *SemanticService) DeleteVector(ctx context.Context, cacheKey string) error {
	return s.vectorRepo.DeleteByIDs(ctx, []string{models.VectorIDForCacheKey(cacheKey)})
}
