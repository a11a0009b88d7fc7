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

package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"

	"tcm-cbr/internal/storage/cache"
)

// CachedEmbedder 在底层 Embedder 外包一层缓存，相同文本不重复编码
type CachedEmbedder struct {
	inner Embedder
	store cache.Store
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, store cache.Store, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedEmbedder{inner: inner, store: store, ttl: ttl}
}

func cacheKey(text, mode string) string {
	sum := md5.Sum([]byte(mode + ":" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string, mode string) ([]float64, error) {
	key := cacheKey(text, mode)
	if val, ok, err := c.store.Get(ctx, key); err == nil && ok {
		var vec []float64
		if json.Unmarshal([]byte(val), &vec) == nil && len(vec) > 0 {
			return vec, nil
		}
	}
	vec, err := c.inner.Embed(ctx, text, mode)
	if err != nil {
		return nil, err
	}
	if buf, err := json.Marshal(vec); err == nil {
		// 缓存写失败不影响结果
		_ = c.store.Set(ctx, key, string(buf), c.ttl)
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }
