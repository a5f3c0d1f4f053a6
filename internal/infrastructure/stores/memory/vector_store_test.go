package memory

import (
	"context"
	"testing"

	"imgcache/internal/domain/models"
)

func TestQueryRanksByCosineSimilarity(t *testing.T) {
	store := NewVectorStore(nil)
	ctx := context.Background()

	records := []*models.VectorRecord{
		{ID: "a", Vector: []float32{1, 0, 0}, CacheKey: "key-a", Bucket: "512x512"},
		{ID: "b", Vector: []float32{0.9, 0.1, 0}, CacheKey: "key-b", Bucket: "512x512"},
		{ID: "c", Vector: []float32{0, 1, 0}, CacheKey: "key-c", Bucket: "512x512"},
	}
	for _, r := range records {
		if err := store.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert(%s) error: %v", r.ID, err)
		}
	}

	results, err := store.Query(ctx, []float32{1, 0, 0}, "512x512", 2)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected ranking: %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %f <= %f", results[0].Score, results[1].Score)
	}
}

func TestQueryBucketIsolation(t *testing.T) {
	store := NewVectorStore(nil)
	ctx := context.Background()

	if err := store.Upsert(ctx, &models.VectorRecord{
		ID: "a", Vector: []float32{1, 0}, CacheKey: "key-a", Bucket: "512x512",
	}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	// 其他bucket中的相同向量不可见
	results, err := store.Query(ctx, []float32{1, 0}, "1024x1024", 1)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no cross-bucket results, got %d", len(results))
	}
}

func TestDeleteByIDs(t *testing.T) {
	store := NewVectorStore(nil)
	ctx := context.Background()

	if err := store.Upsert(ctx, &models.VectorRecord{
		ID: "a", Vector: []float32{1, 0}, CacheKey: "key-a", Bucket: "512x512",
	}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := store.DeleteByIDs(ctx, []string{"a", "missing"}); err != nil {
		t.Fatalf("DeleteByIDs error: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d records", store.Len())
	}
}
