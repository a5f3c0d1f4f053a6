package embedding

import (
	"context"
	"fmt"
	"testing"
	"time"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"imgcache/pkg/logger"
)

// stubEmbedder 可编程的 Embedder 测试替身
type stubEmbedder struct {
	vectors [][]float64
	err     error
	calls   []string
}

func (s *stubEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembedding.Option) ([][]float64, error) {
	s.calls = append(s.calls, texts...)
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

func TestEmbedNormalizesPrompt(t *testing.T) {
	stub := &stubEmbedder{vectors: [][]float64{{0.1, 0.2, 0.3}}}
	service := NewService(stub, time.Second, logger.Default())

	vector := service.Embed(context.Background(), "  Sunset, Over THE Ocean!  ")
	if vector == nil {
		t.Fatal("expected vector, got nil")
	}

	if len(vector) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(vector))
	}

	if len(stub.calls) != 1 || stub.calls[0] != "sunset over the ocean" {
		t.Errorf("expected normalized prompt, got %v", stub.calls)
	}
}

func TestEmbedReturnsNilOnFailure(t *testing.T) {
	tests := []struct {
		name string
		stub *stubEmbedder
	}{
		{name: "model error", stub: &stubEmbedder{err: fmt.Errorf("upstream down")}},
		{name: "empty response", stub: &stubEmbedder{vectors: [][]float64{}}},
		{name: "empty vector", stub: &stubEmbedder{vectors: [][]float64{{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(tt.stub, time.Second, logger.Default())
			if vector := service.Embed(context.Background(), "a cat"); vector != nil {
				t.Errorf("expected nil on failure, got %v", vector)
			}
		})
	}
}

func TestEmbedEmptyPromptSkipsModel(t *testing.T) {
	stub := &stubEmbedder{vectors: [][]float64{{0.1}}}
	service := NewService(stub, time.Second, logger.Default())

	if vector := service.Embed(context.Background(), "  !!! "); vector != nil {
		t.Errorf("expected nil for prompt that normalizes to empty, got %v", vector)
	}

	if len(stub.calls) != 0 {
		t.Errorf("expected no model call for empty prompt, got %v", stub.calls)
	}
}
