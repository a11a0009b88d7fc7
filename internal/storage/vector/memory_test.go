package vector

import (
	"context"
	"testing"
)

func newCaseStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()
	if err := EnsureCollections(ctx, s, 3); err != nil {
		t.Fatalf("EnsureCollections: %v", err)
	}
	vectors := []*Vector{
		{ID: "a", Values: []float64{1, 0, 0}, Metadata: map[string]string{"case_id": "c1", "summary": "失眠"}},
		{ID: "b", Values: []float64{0, 1, 0}, Metadata: map[string]string{"case_id": "c2", "summary": "頭痛"}},
		{ID: "c", Values: []float64{0.9, 0.1, 0}, Metadata: map[string]string{"case_id": "c3", "summary": "失眠多夢"}},
	}
	if err := s.Add(ctx, CollectionCase, vectors); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return s
}

func TestMemoryStoreSearchByVector(t *testing.T) {
	s := newCaseStore(t)
	results, err := s.Search(context.Background(), CollectionCase, []float64{1, 0, 0}, &SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("期望 2 筆, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("最相似的應為 a, got %s", results[0].ID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("結果未按相似度降序")
	}
}

func TestMemoryStoreFilterOnly(t *testing.T) {
	s := newCaseStore(t)
	results, err := s.Search(context.Background(), CollectionCase, nil, &SearchOptions{
		TopK:   10,
		Filter: map[string]string{"case_id": "c2"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Metadata["summary"] != "頭痛" {
		t.Errorf("過濾查詢結果不符: %+v", results)
	}
}

func TestMemoryStoreGetDelete(t *testing.T) {
	s := newCaseStore(t)
	ctx := context.Background()

	v, err := s.Get(ctx, CollectionCase, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Metadata["case_id"] != "c1" {
		t.Errorf("Get 元數據不符: %v", v.Metadata)
	}

	if err := s.Delete(ctx, CollectionCase, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, CollectionCase, "a"); err == nil {
		t.Error("刪除後 Get 應報錯")
	}
}

func TestMemoryStoreUnknownCollection(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Search(context.Background(), "Nope", nil, nil); err == nil {
		t.Error("未知集合應報錯")
	}
}

func TestCreateIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	idx := &Index{Name: CollectionCase, Dimension: 3, Properties: CaseProperties}
	if err := s.Create(ctx, idx); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, idx); err != nil {
		t.Errorf("重複創建集合應為冪等: %v", err)
	}
}

func TestMemoryStoreCollectionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := EnsureCollections(ctx, s, 3); err != nil {
		t.Fatal(err)
	}
	names, err := s.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("應有 3 個集合: %v", names)
	}
	// 排序后顺序固定
	if names[0] != CollectionCase || names[1] != CollectionPCD || names[2] != CollectionPulsePJ {
		t.Errorf("集合名順序不符: %v", names)
	}

	if err := s.DeleteCollection(ctx, CollectionPCD); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	names, _ = s.ListCollections(ctx)
	if len(names) != 2 {
		t.Errorf("刪除後應剩 2 個集合: %v", names)
	}
	if err := s.DeleteCollection(ctx, CollectionPCD); err != nil {
		t.Errorf("重複刪除應為冪等: %v", err)
	}
}
