package services

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"imgcache/configs"
	"imgcache/internal/domain/keys"
	"imgcache/internal/domain/models"
	"imgcache/internal/origin"
)

// fakeOrigin 固定响应的源站客户端
type fakeOrigin struct {
	resp  *origin.Response
	calls int
}

func (f *fakeOrigin) Fetch(ctx context.Context, req *models.GenerateRequest) (*origin.Response, error) {
	f.calls++
	return f.resp, nil
}

// inlineRunner 同步执行提交任务的执行器，测试用
type inlineRunner struct {
	tasks []string
}

func (r *inlineRunner) Submit(name string, fn func(ctx context.Context) error) bool {
	r.tasks = append(r.tasks, name)
	_ = fn(context.Background())
	return true
}

func hybridTestConfig() *configs.Config {
	config := configs.DefaultConfig()
	config.Semantic.Enabled = true
	return config
}

func newTestRequest(prompt string, query url.Values) *models.GenerateRequest {
	if query == nil {
		query = url.Values{}
	}
	params := models.ParseGenerateParams(query, models.ParamDefaults{Width: 1024, Height: 1024, Model: "flux"})
	return &models.GenerateRequest{
		Method:      http.MethodGet,
		Path:        "/prompt/" + prompt,
		Prompt:      prompt,
		Query:       query,
		Params:      params,
		Header:      http.Header{},
		ClientIP:    "203.0.113.9",
		RequestID:   "req-1",
		OriginalURL: "/prompt/" + prompt,
	}
}

func newHybridService(originCli OriginClient, embedVector []float32) (*HybridCacheService, *fakeObjectRepo, *fakeVectorRepo, *inlineRunner) {
	config := hybridTestConfig()
	objectRepo := newFakeObjectRepo()
	vectorRepo := &fakeVectorRepo{}
	runner := &inlineRunner{}
	semantic := NewSemanticService(&fakeEmbedder{vector: embedVector}, vectorRepo, objectRepo, &config.Semantic, nil)
	svc := NewHybridCacheService(objectRepo, semantic, originCli, runner, config, nil)
	return svc, objectRepo, vectorRepo, runner
}

func TestHandleOriginMissThenExactHit(t *testing.T) {
	originCli := &fakeOrigin{resp: &origin.Response{
		StatusCode:  http.StatusOK,
		ContentType: "image/jpeg",
		Body:        []byte("jpeg-bytes"),
	}}
	svc, objectRepo, vectorRepo, runner := newHybridService(originCli, []float32{1, 0})

	req := newTestRequest("a red bird", nil)

	// 第一次请求：回源并写回
	outcome, err := svc.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if outcome.Tier != models.TierOrigin {
		t.Errorf("expected origin tier, got %s", outcome.Tier)
	}
	if string(outcome.Body) != "jpeg-bytes" {
		t.Errorf("unexpected body: %s", outcome.Body)
	}
	if len(runner.tasks) == 0 {
		t.Fatal("expected write-behind task to be submitted")
	}
	if len(objectRepo.entries) != 1 {
		t.Fatalf("expected 1 cached entry, got %d", len(objectRepo.entries))
	}
	if len(vectorRepo.upserted) != 1 {
		t.Fatalf("expected 1 vector record, got %d", len(vectorRepo.upserted))
	}

	// 第二次相同请求：精确命中，不再回源
	outcome, err = svc.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if outcome.Tier != models.TierExact {
		t.Errorf("expected exact tier, got %s", outcome.Tier)
	}
	if string(outcome.Body) != "jpeg-bytes" {
		t.Errorf("cached body mismatch: %s", outcome.Body)
	}
	if originCli.calls != 1 {
		t.Errorf("expected single origin fetch, got %d", originCli.calls)
	}

	stats := svc.Stats()
	if stats.ExactHits != 1 || stats.OriginFetches != 1 || stats.WriteBehind != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandleSemanticHit(t *testing.T) {
	originCli := &fakeOrigin{resp: &origin.Response{
		StatusCode:  http.StatusOK,
		ContentType: "image/jpeg",
		Body:        []byte("original-image"),
	}}
	svc, _, vectorRepo, _ := newHybridService(originCli, []float32{1, 0})

	// 先缓存一条
	first := newTestRequest("a red bird on a branch", nil)
	if _, err := svc.Handle(context.Background(), first); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	// 构造语义近邻候选：fakeVectorRepo的Query返回已写入的记录
	record := vectorRepo.upserted[0]
	vectorRepo.results = []models.VectorQueryResult{
		{ID: record.ID, Score: 0.93, Payload: record.Payload()},
	}

	// 措辞不同但语义相同的请求：精确键不同，语义命中
	second := newTestRequest("a crimson bird sitting on a branch", nil)
	outcome, err := svc.Handle(context.Background(), second)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if outcome.Tier != models.TierSemantic {
		t.Fatalf("expected semantic tier, got %s", outcome.Tier)
	}
	if string(outcome.Body) != "original-image" {
		t.Errorf("expected cached image, got %s", outcome.Body)
	}
	if outcome.Similarity != 0.93 {
		t.Errorf("unexpected similarity: %f", outcome.Similarity)
	}
	if !outcome.Semantic.Performed {
		t.Error("semantic debug should mark search as performed")
	}
	if originCli.calls != 1 {
		t.Errorf("semantic hit should not fetch origin, calls=%d", originCli.calls)
	}
}

func TestHandleNoCacheBypassesAllLayers(t *testing.T) {
	originCli := &fakeOrigin{resp: &origin.Response{
		StatusCode:  http.StatusOK,
		ContentType: "image/jpeg",
		Body:        []byte("fresh"),
	}}
	svc, objectRepo, _, _ := newHybridService(originCli, []float32{1, 0})

	query := url.Values{"no-cache": {""}}
	req := newTestRequest("a red bird", query)

	outcome, err := svc.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if outcome.Tier != models.TierOrigin {
		t.Errorf("expected origin tier, got %s", outcome.Tier)
	}
	// no-cache请求不产生缓存写入
	if len(objectRepo.entries) != 0 {
		t.Errorf("no-cache request must not be stored, got %d entries", len(objectRepo.entries))
	}
}

func TestHandleNonCacheableContentNotStored(t *testing.T) {
	originCli := &fakeOrigin{resp: &origin.Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		Body:        []byte("<html>error page</html>"),
	}}
	svc, objectRepo, vectorRepo, _ := newHybridService(originCli, []float32{1, 0})

	if _, err := svc.Handle(context.Background(), newTestRequest("a red bird", nil)); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if len(objectRepo.entries) != 0 {
		t.Error("non-image response must not be cached")
	}
	if len(vectorRepo.upserted) != 0 {
		t.Error("non-image response must not be indexed")
	}
}

func TestHandleOriginErrorStatusNotStored(t *testing.T) {
	originCli := &fakeOrigin{resp: &origin.Response{
		StatusCode:  http.StatusBadGateway,
		ContentType: "image/jpeg",
		Body:        []byte("broken"),
	}}
	svc, objectRepo, _, _ := newHybridService(originCli, []float32{1, 0})

	outcome, err := svc.Handle(context.Background(), newTestRequest("a red bird", nil))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	// 源站错误状态原样返回但不入缓存
	if outcome.StatusCode != http.StatusBadGateway {
		t.Errorf("unexpected status: %d", outcome.StatusCode)
	}
	if len(objectRepo.entries) != 0 {
		t.Error("error response must not be cached")
	}
}

func TestHandleEmbeddingFailureFallsThroughToOrigin(t *testing.T) {
	originCli := &fakeOrigin{resp: &origin.Response{
		StatusCode:  http.StatusOK,
		ContentType: "image/jpeg",
		Body:        []byte("image"),
	}}
	// 嵌入失败：语义层整体跳过，请求仍然成功
	svc, objectRepo, vectorRepo, _ := newHybridService(originCli, nil)

	outcome, err := svc.Handle(context.Background(), newTestRequest("a red bird", nil))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if outcome.Tier != models.TierOrigin {
		t.Errorf("expected origin tier, got %s", outcome.Tier)
	}
	if outcome.Semantic.Performed {
		t.Error("semantic search should be marked as skipped")
	}
	// 条目仍写入精确缓存，但没有向量
	if len(objectRepo.entries) != 1 {
		t.Errorf("expected exact cache write, got %d entries", len(objectRepo.entries))
	}
	if len(vectorRepo.upserted) != 0 {
		t.Errorf("expected no vector writes, got %d", len(vectorRepo.upserted))
	}
}

func TestDeleteRemovesEntryAndVector(t *testing.T) {
	originCli := &fakeOrigin{resp: &origin.Response{
		StatusCode:  http.StatusOK,
		ContentType: "image/jpeg",
		Body:        []byte("image"),
	}}
	svc, objectRepo, vectorRepo, _ := newHybridService(originCli, []float32{1, 0})

	req := newTestRequest("a red bird", nil)
	if _, err := svc.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	rules := keys.KeyRules{
		ExcludedParams:   hybridTestConfig().Keys.ExcludedParams,
		PinnedSeedModels: hybridTestConfig().Keys.PinnedSeedModels,
		MaxKeyBytes:      hybridTestConfig().Keys.MaxKeyBytes,
	}
	cacheKey := keys.DeriveCacheKey(req.Path, req.Query, rules)

	existed, err := svc.Delete(context.Background(), cacheKey)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if !existed {
		t.Error("expected existed=true")
	}
	if len(objectRepo.entries) != 0 {
		t.Error("entry not removed")
	}
	if len(vectorRepo.deleted) != 1 || vectorRepo.deleted[0] != models.VectorIDForCacheKey(cacheKey) {
		t.Errorf("vector not removed: %v", vectorRepo.deleted)
	}

	// 再删一次：条目已不存在
	existed, err = svc.Delete(context.Background(), cacheKey)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if existed {
		t.Error("expected existed=false on second delete")
	}
}
