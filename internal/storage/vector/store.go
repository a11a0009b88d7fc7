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

	"tcm-cbr/pkg/config"
)

// NewStore 按配置创建向量存储，type 支持 memory / weaviate
func NewStore(cfg config.VectorConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "weaviate":
		return NewWeaviateStore(cfg.Addr, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", cfg.Type)
	}
}

// EnsureCollections 确保三个集合存在
func EnsureCollections(ctx context.Context, store Store, dimension int) error {
	indexes := []*Index{
		{Name: CollectionCase, Dimension: dimension, Properties: CaseProperties},
		{Name: CollectionPCD, Dimension: dimension, Properties: CaseProperties},
		{Name: CollectionPulsePJ, Dimension: dimension, Properties: PulseProperties},
	}
	for _, idx := range indexes {
		if err := store.Create(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
