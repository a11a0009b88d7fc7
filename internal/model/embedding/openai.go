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
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"tcm-cbr/pkg/errors"
)

// OpenAIEmbedder OpenAI 兼容的 embedding 客户端，支持 NVIDIA NIM 的
// input_type 扩展参数（passage / query）
type OpenAIEmbedder struct {
	client    *resty.Client
	apiKey    string
	baseURL   string
	model     string
	dimension int
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://integrate.api.nvidia.com/v1"
	}
	if model == "" {
		model = "nvidia/nv-embedqa-e5-v5"
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second)
	return &OpenAIEmbedder{
		client:  client,
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string, mode string) ([]float64, error) {
	if text == "" {
		return nil, errors.ErrInvalidArg
	}
	if mode != ModePassage && mode != ModeQuery {
		mode = ModeQuery
	}
	body := map[string]any{
		"model":      e.model,
		"input":      []string{text},
		"input_type": mode,
		"truncate":   "NONE",
	}
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+e.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(e.baseURL + "/embeddings")
	if err != nil {
		return nil, errors.Wrap(err, "embedding 请求失败")
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("embedding API 返回 %d: %s", resp.StatusCode(), resp.String())
	}
	vec, err := extractVector(resp.Body())
	if err != nil {
		return nil, err
	}
	if e.dimension == 0 {
		e.dimension = len(vec)
	}
	return vec, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// extractVector 兼容多种响应结构：
// {"data":[{"embedding":[...]}]} / {"embedding":[...]} / {"vector":[...]}
func extractVector(body []byte) ([]float64, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "解析 embedding 响应失败")
	}
	if data, ok := raw["data"].([]any); ok && len(data) > 0 {
		if item, ok := data[0].(map[string]any); ok {
			if vec := toFloats(item["embedding"]); vec != nil {
				return vec, nil
			}
		}
	}
	if vec := toFloats(raw["embedding"]); vec != nil {
		return vec, nil
	}
	if vec := toFloats(raw["vector"]); vec != nil {
		return vec, nil
	}
	return nil, fmt.Errorf("embedding 响应中未找到向量")
}

func toFloats(v any) []float64 {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, x := range arr {
		f, ok := x.(float64)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}
