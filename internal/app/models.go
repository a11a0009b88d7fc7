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

package app

import (
	"fmt"
	"time"

	"tcm-cbr/internal/model/embedding"
	"tcm-cbr/internal/model/llm"
	"tcm-cbr/internal/storage/cache"
	"tcm-cbr/pkg/config"
)

// NewLLMClientFromConfig 按 defaults.llm 创建限流的 LLM 客户端
func NewLLMClientFromConfig(cfg *config.Config) (llm.Client, error) {
	provider := cfg.Model.Defaults.LLM
	if provider == "" {
		provider = "openai"
	}
	providerCfg, ok := cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("未配置 LLM provider: %s", provider)
	}
	model := firstModelName(providerCfg)

	client, err := llm.NewClient(provider, model, providerCfg.APIKey, providerCfg.BaseURL)
	if err != nil {
		return nil, err
	}

	limits := make(map[string]llm.LimitConfig, len(cfg.RateLimits.LLM))
	for name, rl := range cfg.RateLimits.LLM {
		limits[name] = llm.LimitConfig{
			RequestsPerMinute: rl.RequestsPerMinute,
			MaxConcurrent:     rl.MaxConcurrent,
		}
	}
	return llm.NewRateLimitedClient(client, llm.NewRateLimiter(limits, nil)), nil
}

// NewEmbedderFromConfig 按 defaults.embedding 创建带缓存的向量化客户端
func NewEmbedderFromConfig(cfg *config.Config, store cache.Store) (embedding.Embedder, error) {
	provider := cfg.Model.Defaults.Embedding
	if provider == "" {
		provider = "nvidia"
	}
	providerCfg, ok := cfg.Model.Embedding.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("未配置 embedding provider: %s", provider)
	}
	model := firstModelName(providerCfg)

	var embedder embedding.Embedder = embedding.NewOpenAIEmbedder(providerCfg.APIKey, providerCfg.BaseURL, model)
	if store != nil {
		embedder = embedding.NewCachedEmbedder(embedder, store, 24*time.Hour)
	}
	return embedder, nil
}

func firstModelName(providerCfg config.ProviderConfig) string {
	for _, info := range providerCfg.Models {
		if info.Name != "" {
			return info.Name
		}
	}
	return ""
}
