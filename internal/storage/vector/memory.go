// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore 内存向量存储，开发与测试用
type MemoryStore struct {
	collections map[string]*collection
	mu          sync.RWMutex
}

type collection struct {
	index   *Index
	vectors map[string]*Vector
}

// NewMemoryStore 创建内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*collection),
	}
}

// Create 创建集合，已存在时为幂等
func (s *MemoryStore) Create(_ context.Context, idx *Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[idx.Name]; exists {
		return nil
	}
	s.collections[idx.Name] = &collection{
		index:   idx,
		vectors: make(map[string]*Vector),
	}
	return nil
}

// Add 添加向量对象
func (s *MemoryStore) Add(_ context.Context, name string, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, exists := s.collections[name]
	if !exists {
		return fmt.Errorf("集合 %s 不存在", name)
	}
	for _, v := range vectors {
		if col.index.Dimension > 0 && len(v.Values) > 0 && len(v.Values) != col.index.Dimension {
			return fmt.Errorf("向量维度 %d 与集合维度 %d 不符", len(v.Values), col.index.Dimension)
		}
		col.vectors[v.ID] = v
	}
	return nil
}

// Search 语意检索；query 为 nil 时按 Filter 过滤返回
func (s *MemoryStore) Search(_ context.Context, name string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, exists := s.collections[name]
	if !exists {
		return nil, fmt.Errorf("集合 %s 不存在", name)
	}
	if options == nil {
		options = &SearchOptions{TopK: 10}
	}

	var results []*SearchResult
	for id, v := range col.vectors {
		if !matchFilter(v.Metadata, options.Filter) {
			continue
		}
		score := 0.0
		if query != nil {
			score = cosineSimilarity(query, v.Values)
			if score < options.Threshold {
				continue
			}
		}
		results = append(results, &SearchResult{
			ID:       id,
			Score:    score,
			Metadata: v.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if options.TopK > 0 && len(results) > options.TopK {
		results = results[:options.TopK]
	}
	return results, nil
}

// Get 根据 ID 获取向量对象
func (s *MemoryStore) Get(_ context.Context, name string, id string) (*Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, exists := s.collections[name]
	if !exists {
		return nil, fmt.Errorf("集合 %s 不存在", name)
	}
	v, ok := col.vectors[id]
	if !ok {
		return nil, fmt.Errorf("向量 %s 不存在", id)
	}
	return v, nil
}

// Delete 删除向量对象
func (s *MemoryStore) Delete(_ context.Context, name string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, exists := s.collections[name]
	if !exists {
		return fmt.Errorf("集合 %s 不存在", name)
	}
	delete(col.vectors, id)
	return nil
}

// DeleteCollection 删除整个集合，不存在时为幂等
func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, name)
	return nil
}

// ListCollections 列出集合名，按名称排序
func (s *MemoryStore) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Close() error { return nil }

func matchFilter(metadata, filter map[string]string) bool {
	for key, value := range filter {
		if metadata == nil || metadata[key] != value {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
