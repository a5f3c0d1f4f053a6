// Package embedding 提供提示词向量化能力
package embedding

import (
	"context"
	"fmt"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"imgcache/configs"
)

// NewEmbedder 根据配置创建并返回一个 Eino Embedder 实例。
// 目前通过 OpenAI 兼容接口调用远程嵌入模型，BaseURL 可指向任意兼容服务。
// 参数 ctx: 上下文对象。
// 参数 cfg: 嵌入模型配置，包含 API 密钥、模型名称、维度等。
// 返回: 初始化后的 Embedder 实例，初始化失败则返回错误。
func NewEmbedder(ctx context.Context, cfg *configs.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	embedCfg := &openaiembed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	// 设置 BaseURL（如果提供）
	if cfg.BaseURL != "" {
		embedCfg.BaseURL = cfg.BaseURL
	}

	// 设置维度（如果提供）
	if cfg.Dimensions > 0 {
		dims := cfg.Dimensions
		embedCfg.Dimensions = &dims
	}

	return openaiembed.NewEmbedder(ctx, embedCfg)
}
