package configs

import (
	"testing"
	"time"
)

func TestDefaultConfigValidation(t *testing.T) {
	// 测试 DefaultConfig 可以通过整体验证
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig validation failed: %v", err)
	}
}

func TestSemanticConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  SemanticConfig
		wantErr bool
	}{
		{
			name: "disabled semantic passes",
			config: SemanticConfig{
				Enabled:   false,
				Threshold: 5.0,
			},
			wantErr: false,
		},
		{
			name: "enabled with valid threshold passes",
			config: SemanticConfig{
				Enabled:   true,
				Threshold: 0.8,
			},
			wantErr: false,
		},
		{
			name: "threshold above one fails",
			config: SemanticConfig{
				Enabled:   true,
				Threshold: 1.5,
			},
			wantErr: true,
		},
		{
			name: "negative threshold fails",
			config: SemanticConfig{
				Enabled:   true,
				Threshold: -0.1,
			},
			wantErr: true,
		},
		{
			name: "adaptive with inverted range fails",
			config: SemanticConfig{
				Enabled:   true,
				Threshold: 0.8,
				Adaptive: AdaptiveThresholdConfig{
					Enabled:  true,
					Min:      0.9,
					Max:      0.8,
					ShortLen: 20,
					LongLen:  120,
				},
			},
			wantErr: true,
		},
		{
			name: "adaptive with bad lengths fails",
			config: SemanticConfig{
				Enabled:   true,
				Threshold: 0.8,
				Adaptive: AdaptiveThresholdConfig{
					Enabled:  true,
					Min:      0.78,
					Max:      0.92,
					ShortLen: 120,
					LongLen:  20,
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("SemanticConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveThreshold(t *testing.T) {
	cfg := SemanticConfig{
		Enabled:   true,
		Threshold: 0.8,
		Adaptive: AdaptiveThresholdConfig{
			Enabled:  true,
			Min:      0.78,
			Max:      0.92,
			ShortLen: 20,
			LongLen:  120,
		},
	}

	tests := []struct {
		name      string
		promptLen int
		expected  float64
	}{
		{name: "short prompt pinned to max", promptLen: 5, expected: 0.92},
		{name: "boundary short", promptLen: 20, expected: 0.92},
		{name: "long prompt pinned to min", promptLen: 300, expected: 0.78},
		{name: "boundary long", promptLen: 120, expected: 0.78},
		{name: "midpoint interpolation", promptLen: 70, expected: 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.EffectiveThreshold(tt.promptLen)
			if diff := got - tt.expected; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("EffectiveThreshold(%d) = %v, expected %v", tt.promptLen, got, tt.expected)
			}
		})
	}

	// 自适应关闭时返回固定阈值
	cfg.Adaptive.Enabled = false
	if got := cfg.EffectiveThreshold(5); got != 0.8 {
		t.Errorf("expected fixed threshold 0.8, got %v", got)
	}
}

func TestObjectStoreConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  ObjectStoreConfig
		wantErr bool
	}{
		{name: "memory passes", config: ObjectStoreConfig{Type: "memory"}, wantErr: false},
		{name: "missing type fails", config: ObjectStoreConfig{}, wantErr: true},
		{name: "unknown type fails", config: ObjectStoreConfig{Type: "gcs"}, wantErr: true},
		{
			name:    "s3 without bucket fails",
			config:  ObjectStoreConfig{Type: "s3", S3: S3Config{Region: "auto"}},
			wantErr: true,
		},
		{
			name:    "s3 with bucket and region passes",
			config:  ObjectStoreConfig{Type: "s3", S3: S3Config{Region: "auto", Bucket: "b", RequestTimeout: time.Second}},
			wantErr: false,
		},
		{
			name:    "redis without addr fails",
			config:  ObjectStoreConfig{Type: "redis"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("ObjectStoreConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddingConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  EmbeddingConfig
		wantErr bool
	}{
		{
			name:    "model with default dimensions passes",
			config:  EmbeddingConfig{Model: "text-embedding-3-small", Timeout: time.Second},
			wantErr: false,
		},
		{
			name:    "missing model fails",
			config:  EmbeddingConfig{Timeout: time.Second},
			wantErr: true,
		},
		{
			name:    "negative dimensions fail",
			config:  EmbeddingConfig{Model: "text-embedding-3-small", Dimensions: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("EmbeddingConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  CacheConfig
		wantErr bool
	}{
		{
			name: "valid config passes",
			config: CacheConfig{
				CacheableContentTypes: []string{"image/"},
				DefaultWidth:          1024,
				DefaultHeight:         1024,
				MaxBodyBytes:          1 << 20,
			},
			wantErr: false,
		},
		{
			name: "empty content types fail",
			config: CacheConfig{
				DefaultWidth:  1024,
				DefaultHeight: 1024,
			},
			wantErr: true,
		},
		{
			name: "zero default dimensions fail",
			config: CacheConfig{
				CacheableContentTypes: []string{"image/"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("CacheConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddingSkippedWhenSemanticDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Semantic.Enabled = false
	cfg.Embedding.Model = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("embedding must not be required with semantic disabled: %v", err)
	}
}
