package configs

import (
	"fmt"
	"time"
)

// Config 主配置结构体，定义了应用程序的所有配置项。
// 包含服务器、源站、对象存储、向量索引、嵌入模型、语义匹配、
// 键派生规则、写回任务和日志等模块的配置信息。
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Origin      OriginConfig      `yaml:"origin"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Semantic    SemanticConfig    `yaml:"semantic"`
	Keys        KeysConfig        `yaml:"keys"`
	Cache       CacheConfig       `yaml:"cache"`
	Tasks       TasksConfig       `yaml:"tasks"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig 定义服务器相关的配置参数。
// 包含监听地址、端口、超时设置等。
type ServerConfig struct {
	Host                    string        `yaml:"host"`
	Port                    int           `yaml:"port"`
	ReadTimeout             time.Duration `yaml:"read_timeout"`
	WriteTimeout            time.Duration `yaml:"write_timeout"`
	IdleTimeout             time.Duration `yaml:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// OriginConfig 定义生成源站的配置参数。
type OriginConfig struct {
	// BaseURL 源站基础地址，缓存未命中的请求原样转发到这里
	BaseURL string `yaml:"base_url"`

	// Timeout 单次回源的超时时间
	Timeout time.Duration `yaml:"timeout"`
}

// ObjectStoreConfig 定义精确缓存对象存储的配置参数。
// 支持 s3（生产）、redis 与 memory（开发/测试）三种后端。
type ObjectStoreConfig struct {
	Type  string      `yaml:"type"`
	S3    S3Config    `yaml:"s3"`
	Redis RedisConfig `yaml:"redis"`
}

// S3Config 定义 S3 兼容对象存储（含 R2、MinIO）的配置。
type S3Config struct {
	Region         string        `yaml:"region"`
	Bucket         string        `yaml:"bucket"`
	Endpoint       string        `yaml:"endpoint"`
	ForcePathStyle bool          `yaml:"force_path_style"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// RedisConfig 定义 Redis 对象存储后端的配置。
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// VectorIndexConfig 定义向量索引的配置参数。
// 支持 qdrant（生产）与 memory（开发/测试）两种后端。
type VectorIndexConfig struct {
	Type   string       `yaml:"type"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig 定义 Qdrant 向量数据库的具体配置。
// 包含连接信息、集合名称、向量维度和距离度量方式等。
type QdrantConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	APIKey         string        `yaml:"api_key"`
	CollectionName string        `yaml:"collection_name"`
	VectorSize     int           `yaml:"vector_size"`
	Distance       string        `yaml:"distance"`
	Timeout        time.Duration `yaml:"timeout"`
}

// EmbeddingConfig 定义嵌入模型的配置参数。
// 通过 OpenAI 兼容接口调用远程嵌入模型。
type EmbeddingConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SemanticConfig 定义语义缓存匹配的核心配置参数。
type SemanticConfig struct {
	// Enabled 语义层总开关，关闭时所有请求直接回源或走精确缓存
	Enabled bool `yaml:"enabled"`

	// Threshold 固定相似度阈值，候选分数大于等于它才算命中
	Threshold float64 `yaml:"threshold"`

	// QueryTimeout 单次近邻检索的超时时间
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// Adaptive 按提示词长度浮动阈值的配置
	Adaptive AdaptiveThresholdConfig `yaml:"adaptive"`
}

// AdaptiveThresholdConfig 定义按提示词长度浮动的阈值策略。
// 短提示词语义信号少，要求更严格的阈值；长提示词可以放宽。
// 生效阈值在 [Min, Max] 区间内按长度线性插值。
type AdaptiveThresholdConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	ShortLen int     `yaml:"short_len"`
	LongLen  int     `yaml:"long_len"`
}

// KeysConfig 定义缓存键派生规则的配置。
type KeysConfig struct {
	// ExcludedParams 派生缓存键时剔除的参数名
	ExcludedParams []string `yaml:"excluded_params"`

	// PinnedSeedModels 种子钉死的模型名列表
	PinnedSeedModels []string `yaml:"pinned_seed_models"`

	// MaxKeyBytes 缓存键字节预算
	MaxKeyBytes int `yaml:"max_key_bytes"`
}

// CacheConfig 定义缓存行为的配置参数。
type CacheConfig struct {
	// CacheableContentTypes 允许写入缓存的Content-Type前缀
	CacheableContentTypes []string `yaml:"cacheable_content_types"`

	// DefaultWidth 调用方未指定时的默认宽度
	DefaultWidth int `yaml:"default_width"`

	// DefaultHeight 调用方未指定时的默认高度
	DefaultHeight int `yaml:"default_height"`

	// DefaultModel 调用方未指定时的默认模型
	DefaultModel string `yaml:"default_model"`

	// MaxBodyBytes 请求体读取上限
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// TasksConfig 定义写回任务执行器的配置。
type TasksConfig struct {
	// Workers 后台工作协程数量
	Workers int `yaml:"workers"`

	// QueueSize 任务队列容量，队列满时任务被丢弃并记录日志
	QueueSize int `yaml:"queue_size"`

	// TaskTimeout 单个任务的执行超时
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// LoggingConfig 定义日志系统的配置参数。
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
	Format   string `yaml:"format"`
}

// Validate 检查 Config 配置结构体的有效性。
// 依次调用各个子配置项的 Validate 方法，如果发现无效配置，返回相应的错误。
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	if err := c.Origin.Validate(); err != nil {
		return fmt.Errorf("origin config validation failed: %w", err)
	}

	if err := c.ObjectStore.Validate(); err != nil {
		return fmt.Errorf("object_store config validation failed: %w", err)
	}

	if err := c.VectorIndex.Validate(); err != nil {
		return fmt.Errorf("vector_index config validation failed: %w", err)
	}

	if err := c.Semantic.Validate(); err != nil {
		return fmt.Errorf("semantic config validation failed: %w", err)
	}

	// 语义层关闭时不要求嵌入配置
	if c.Semantic.Enabled {
		if err := c.Embedding.Validate(); err != nil {
			return fmt.Errorf("embedding config validation failed: %w", err)
		}
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config validation failed: %w", err)
	}

	if err := c.Keys.Validate(); err != nil {
		return fmt.Errorf("keys config validation failed: %w", err)
	}

	if err := c.Tasks.Validate(); err != nil {
		return fmt.Errorf("tasks config validation failed: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}

	return nil
}

// Validate 检查 ServerConfig 配置的有效性。
func (s *ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}

	if s.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}

	return nil
}

// Validate 检查 OriginConfig 配置的有效性。
func (o *OriginConfig) Validate() error {
	if o.BaseURL == "" {
		return fmt.Errorf("origin base_url is required")
	}

	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}

	return nil
}

// Validate 检查 ObjectStoreConfig 配置的有效性。
func (o *ObjectStoreConfig) Validate() error {
	switch o.Type {
	case "s3":
		return o.S3.Validate()
	case "redis":
		return o.Redis.Validate()
	case "memory":
		return nil
	case "":
		return fmt.Errorf("object store type is required")
	default:
		return fmt.Errorf("unsupported object store type: %s", o.Type)
	}
}

// Validate 检查 S3Config 配置的有效性。
func (s *S3Config) Validate() error {
	if s.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}

	if s.Region == "" && s.Endpoint == "" {
		return fmt.Errorf("s3 region or endpoint is required")
	}

	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 30 * time.Second
	}

	return nil
}

// Validate 检查 RedisConfig 配置的有效性。
func (r *RedisConfig) Validate() error {
	if r.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	return nil
}

// Validate 检查 VectorIndexConfig 配置的有效性。
func (v *VectorIndexConfig) Validate() error {
	switch v.Type {
	case "qdrant":
		return v.Qdrant.Validate()
	case "memory":
		return nil
	case "":
		return fmt.Errorf("vector index type is required")
	default:
		return fmt.Errorf("unsupported vector index type: %s", v.Type)
	}
}

// Validate 检查 QdrantConfig 配置的有效性。
// 确保 Host、Port、CollectionName 和 VectorSize 等关键参数已正确设置。
func (q *QdrantConfig) Validate() error {
	if q.Host == "" {
		return fmt.Errorf("qdrant host is required")
	}

	if q.Port <= 0 || q.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", q.Port)
	}

	if q.CollectionName == "" {
		return fmt.Errorf("qdrant collection name is required")
	}

	if q.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive")
	}

	if q.Distance == "" {
		q.Distance = "cosine"
	}

	return nil
}

// Validate 检查 SemanticConfig 配置的有效性。
func (s *SemanticConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("similarity threshold must be between 0 and 1")
	}

	if s.QueryTimeout <= 0 {
		s.QueryTimeout = 5 * time.Second
	}

	if s.Adaptive.Enabled {
		if s.Adaptive.Min <= 0 || s.Adaptive.Max > 1 || s.Adaptive.Min > s.Adaptive.Max {
			return fmt.Errorf("adaptive threshold range [%v, %v] is invalid", s.Adaptive.Min, s.Adaptive.Max)
		}

		if s.Adaptive.ShortLen <= 0 || s.Adaptive.LongLen <= s.Adaptive.ShortLen {
			return fmt.Errorf("adaptive threshold lengths must satisfy 0 < short_len < long_len")
		}
	}

	return nil
}

// Validate 检查 EmbeddingConfig 配置的有效性。
// 仅在语义层启用时调用，Dimensions为0表示使用模型默认维度。
func (e *EmbeddingConfig) Validate() error {
	if e.Model == "" {
		return fmt.Errorf("embedding model is required")
	}

	if e.Dimensions < 0 {
		return fmt.Errorf("embedding dimensions cannot be negative")
	}

	if e.Timeout <= 0 {
		e.Timeout = 10 * time.Second
	}

	return nil
}

// Validate 检查 CacheConfig 配置的有效性。
func (c *CacheConfig) Validate() error {
	if len(c.CacheableContentTypes) == 0 {
		return fmt.Errorf("cacheable_content_types cannot be empty")
	}

	if c.DefaultWidth <= 0 || c.DefaultHeight <= 0 {
		return fmt.Errorf("default dimensions must be positive")
	}

	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 4 << 20
	}

	return nil
}

// Validate 检查 KeysConfig 配置的有效性。
func (k *KeysConfig) Validate() error {
	if k.MaxKeyBytes <= 0 {
		return fmt.Errorf("max_key_bytes must be positive")
	}

	// 哈希后缀占9个字节，前缀至少要留出一些空间
	if k.MaxKeyBytes < 32 {
		return fmt.Errorf("max_key_bytes too small: %d", k.MaxKeyBytes)
	}

	return nil
}

// Validate 检查 TasksConfig 配置的有效性。
func (t *TasksConfig) Validate() error {
	if t.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	if t.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}

	if t.TaskTimeout <= 0 {
		t.TaskTimeout = 30 * time.Second
	}

	return nil
}

// Validate 检查 LoggingConfig 配置的有效性。
// 确保日志级别、输出目标和格式有效，如果输出到文件，确保文件路径已指定。
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	validOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}

	if !validOutputs[l.Output] {
		return fmt.Errorf("invalid log output: %s", l.Output)
	}

	if l.Output == "file" && l.FilePath == "" {
		return fmt.Errorf("file path is required when output is file")
	}

	validFormats := map[string]bool{
		"text": true, "json": true, "": true,
	}

	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s", l.Format)
	}

	return nil
}

// GetAddr 获取服务器的完整监听地址。
// 返回格式为 "Host:Port" 的字符串。
func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetAddr 获取 Qdrant 服务的完整地址。
func (q *QdrantConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", q.Host, q.Port)
}

// EffectiveThreshold 计算指定提示词长度下生效的相似度阈值。
// 自适应关闭时返回固定阈值；开启时在 [Min, Max] 内按长度线性插值，
// 提示词越短阈值越高。
func (s *SemanticConfig) EffectiveThreshold(promptLen int) float64 {
	if !s.Adaptive.Enabled {
		return s.Threshold
	}

	a := s.Adaptive
	switch {
	case promptLen <= a.ShortLen:
		return a.Max
	case promptLen >= a.LongLen:
		return a.Min
	default:
		ratio := float64(promptLen-a.ShortLen) / float64(a.LongLen-a.ShortLen)
		return a.Max - (a.Max-a.Min)*ratio
	}
}
