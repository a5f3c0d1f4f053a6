package configs

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load 加载并验证应用程序配置。
// 它按照以下优先级顺序加载配置：
// 1. 默认配置
// 2. 配置文件（config.yaml，支持多个搜索路径）
// 3. 环境变量（覆盖配置文件中的值）
//
// 参数 ctx: 上下文对象。
// 返回加载并验证后的 Config 指针，如果出错则返回 error。
func Load(ctx context.Context) (*Config, error) {
	// 加载 .env 文件（如果存在）
	// 忽略错误，因为 .env 文件是可选的
	_ = godotenv.Load()

	config := DefaultConfig()

	// 尝试加载配置文件
	configPaths := []string{
		"configs/config.yaml",
		"config.yaml",
		"/etc/imgcache/config.yaml",
	}

	for _, path := range configPaths {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, err
			}
			break
		}
	}

	// 从环境变量覆盖配置
	loadFromEnv(config)

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig 创建并返回一个包含默认值的 Config 对象。
// 默认值覆盖了服务器、源站、存储后端、嵌入模型和语义匹配的常用配置。
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                    "0.0.0.0",
			Port:                    8080,
			ReadTimeout:             30 * time.Second,
			WriteTimeout:            120 * time.Second,
			IdleTimeout:             60 * time.Second,
			GracefulShutdownTimeout: 30 * time.Second,
		},
		Origin: OriginConfig{
			BaseURL: "https://image.origin.internal",
			Timeout: 120 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Type: "memory",
			S3: S3Config{
				Region:         "auto",
				Bucket:         "imgcache",
				RequestTimeout: 30 * time.Second,
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "imgcache",
			},
		},
		VectorIndex: VectorIndexConfig{
			Type: "memory",
			Qdrant: QdrantConfig{
				Host:           "localhost",
				Port:           6334,
				CollectionName: "imgcache",
				VectorSize:     1536,
				Distance:       "cosine",
				Timeout:        30 * time.Second,
			},
		},
		Embedding: EmbeddingConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
			Timeout: 10 * time.Second,
		},
		Semantic: SemanticConfig{
			Enabled:      true,
			Threshold:    0.8,
			QueryTimeout: 5 * time.Second,
			Adaptive: AdaptiveThresholdConfig{
				Enabled:  false,
				Min:      0.78,
				Max:      0.92,
				ShortLen: 20,
				LongLen:  120,
			},
		},
		Keys: KeysConfig{
			ExcludedParams:   []string{"no-cache", "token", "referrer", "referer"},
			PinnedSeedModels: []string{"gptimage"},
			MaxKeyBytes:      1000,
		},
		Cache: CacheConfig{
			CacheableContentTypes: []string{"image/", "video/"},
			DefaultWidth:          1024,
			DefaultHeight:         1024,
			DefaultModel:          "flux",
			MaxBodyBytes:          4 << 20,
		},
		Tasks: TasksConfig{
			Workers:     4,
			QueueSize:   256,
			TaskTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// loadFromEnv 从环境变量中读取配置并覆盖 Config 中的值。
// 支持 IMGCACHE_PORT, ORIGIN_BASE_URL, QDRANT_HOST, OPENAI_API_KEY 等环境变量。
func loadFromEnv(config *Config) {
	// Server 配置
	if port := os.Getenv("IMGCACHE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p <= 65535 {
			config.Server.Port = p
		}
	}

	// 源站配置
	if baseURL := os.Getenv("ORIGIN_BASE_URL"); baseURL != "" {
		config.Origin.BaseURL = baseURL
	}

	// 对象存储配置
	if storeType := os.Getenv("OBJECT_STORE_TYPE"); storeType != "" {
		config.ObjectStore.Type = storeType
	}

	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		config.ObjectStore.S3.Bucket = bucket
	}

	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		config.ObjectStore.S3.Endpoint = endpoint
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.ObjectStore.Redis.Addr = addr
	}

	// Qdrant 配置
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		config.VectorIndex.Qdrant.Host = host
	}

	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		config.VectorIndex.Qdrant.APIKey = apiKey
	}

	// OpenAI 配置
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
}
