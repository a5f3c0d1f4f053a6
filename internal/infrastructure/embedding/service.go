package embedding

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"imgcache/internal/domain/keys"
	"imgcache/pkg/logger"
)

// Service 嵌入服务
// 对提示词做归一化后调用嵌入模型，任何失败都返回 nil 而不是错误：
// 调用方必须把 nil 当作"本次请求语义匹配不可用"并落到下一层，
// 绝不能因此让整个请求失败。
type Service struct {
	embedder embedding.Embedder
	timeout  time.Duration
	logger   logger.Logger
}

// NewService 创建嵌入服务。
// embedder: Eino Embedder 实例。
// timeout: 单次嵌入调用的超时时间。
// log: 日志器。
func NewService(embedder embedding.Embedder, timeout time.Duration, log logger.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &Service{
		embedder: embedder,
		timeout:  timeout,
		logger:   log,
	}
}

// Embed 生成归一化提示词的嵌入向量。
// 超时、模型错误或响应异常时返回 nil，只记录日志。
func (s *Service) Embed(ctx context.Context, prompt string) []float32 {
	normalized := keys.NormalizePrompt(prompt)
	if normalized == "" {
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	vectors, err := s.embedder.EmbedStrings(embedCtx, []string{normalized})
	if err != nil {
		s.logger.WarnContext(ctx, "嵌入调用失败，跳过语义匹配",
			"error", err.Error(),
			"duration_ms", time.Since(startTime).Milliseconds())
		return nil
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		s.logger.WarnContext(ctx, "嵌入响应为空，跳过语义匹配",
			"prompt_length", len(normalized))
		return nil
	}

	// Eino 返回 float64，向量库使用 float32
	values := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		values[i] = float32(v)
	}

	s.logger.DebugContext(ctx, "嵌入生成成功",
		"dimension", len(values),
		"duration_ms", time.Since(startTime).Milliseconds())

	return values
}
