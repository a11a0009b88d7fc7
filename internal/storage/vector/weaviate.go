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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// WeaviateStore 基于 Weaviate REST/GraphQL API 的向量存储
type WeaviateStore struct {
	client  *resty.Client
	baseURL string
}

// NewWeaviateStore 创建 Weaviate 存储客户端
func NewWeaviateStore(addr, apiKey string) *WeaviateStore {
	if addr == "" {
		addr = "http://localhost:8080"
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &WeaviateStore{
		client:  client,
		baseURL: strings.TrimRight(addr, "/"),
	}
}

// Create 创建集合（class），已存在视为成功
func (s *WeaviateStore) Create(ctx context.Context, idx *Index) error {
	properties := make([]map[string]any, 0, len(idx.Properties))
	for _, name := range idx.Properties {
		properties = append(properties, map[string]any{
			"name":     name,
			"dataType": []string{"text"},
		})
	}
	body := map[string]any{
		"class":      idx.Name,
		"vectorizer": "none",
		"properties": properties,
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(s.baseURL + "/v1/schema")
	if err != nil {
		return fmt.Errorf("创建集合 %s 失败: %w", idx.Name, err)
	}
	if resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusCreated {
		return nil
	}
	// class 已存在
	if resp.StatusCode() == http.StatusUnprocessableEntity && strings.Contains(resp.String(), "already") {
		return nil
	}
	return fmt.Errorf("创建集合 %s 返回 %d: %s", idx.Name, resp.StatusCode(), resp.String())
}

// Add 添加向量对象
func (s *WeaviateStore) Add(ctx context.Context, name string, vectors []*Vector) error {
	for _, v := range vectors {
		properties := make(map[string]any, len(v.Metadata))
		for key, value := range v.Metadata {
			properties[key] = value
		}
		id := v.ID
		if id == "" {
			id = uuid.NewString()
		}
		body := map[string]any{
			"class":      name,
			"id":         id,
			"properties": properties,
			"vector":     v.Values,
		}
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(body).
			Post(s.baseURL + "/v1/objects")
		if err != nil {
			return fmt.Errorf("上传对象到 %s 失败: %w", name, err)
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
			return fmt.Errorf("上传对象到 %s 返回 %d: %s", name, resp.StatusCode(), resp.String())
		}
	}
	return nil
}

// Search 语意检索；query 为 nil 时仅按 where 过滤
func (s *WeaviateStore) Search(ctx context.Context, name string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	if options == nil {
		options = &SearchOptions{TopK: 10}
	}
	topK := options.TopK
	if topK <= 0 {
		topK = 10
	}

	var clauses []string
	if query != nil {
		clauses = append(clauses, fmt.Sprintf("nearVector: {vector: %s, certainty: %s}",
			formatVector(query), strconv.FormatFloat(options.Threshold, 'f', -1, 64)))
	}
	if len(options.Filter) > 0 {
		clauses = append(clauses, "where: "+formatWhere(options.Filter))
	}
	clauses = append(clauses, fmt.Sprintf("limit: %d", topK))

	fields := strings.Join(propertiesFor(name), " ")
	gql := fmt.Sprintf(`{ Get { %s(%s) { %s _additional { id certainty } } } }`,
		name, strings.Join(clauses, ", "), fields)

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"query": gql}).
		Post(s.baseURL + "/v1/graphql")
	if err != nil {
		return nil, fmt.Errorf("检索 %s 失败: %w", name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("检索 %s 返回 %d: %s", name, resp.StatusCode(), resp.String())
	}
	return parseSearchResponse(resp.Body(), name)
}

// Get 根据 ID 获取向量对象
func (s *WeaviateStore) Get(ctx context.Context, name string, id string) (*Vector, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.baseURL + "/v1/objects/" + name + "/" + id + "?include=vector")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("读取对象 %s/%s 返回 %d", name, id, resp.StatusCode())
	}
	var obj struct {
		ID         string         `json:"id"`
		Properties map[string]any `json:"properties"`
		Vector     []float64      `json:"vector"`
	}
	if err := json.Unmarshal(resp.Body(), &obj); err != nil {
		return nil, fmt.Errorf("解析对象失败: %w", err)
	}
	return &Vector{
		ID:       obj.ID,
		Values:   obj.Vector,
		Metadata: toStringMap(obj.Properties),
	}, nil
}

// Delete 删除向量对象
func (s *WeaviateStore) Delete(ctx context.Context, name string, id string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		Delete(s.baseURL + "/v1/objects/" + name + "/" + id)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusNoContent && resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("删除对象 %s/%s 返回 %d", name, id, resp.StatusCode())
	}
	return nil
}

// DeleteCollection 删除整个集合（class），不存在视为成功
func (s *WeaviateStore) DeleteCollection(ctx context.Context, name string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		Delete(s.baseURL + "/v1/schema/" + name)
	if err != nil {
		return fmt.Errorf("删除集合 %s 失败: %w", name, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return fmt.Errorf("删除集合 %s 返回 %d: %s", name, resp.StatusCode(), resp.String())
}

// ListCollections 列出已有集合（class）名
func (s *WeaviateStore) ListCollections(ctx context.Context) ([]string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.baseURL + "/v1/schema")
	if err != nil {
		return nil, fmt.Errorf("读取 schema 失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("读取 schema 返回 %d: %s", resp.StatusCode(), resp.String())
	}
	var schema struct {
		Classes []struct {
			Class string `json:"class"`
		} `json:"classes"`
	}
	if err := json.Unmarshal(resp.Body(), &schema); err != nil {
		return nil, fmt.Errorf("解析 schema 失败: %w", err)
	}
	names := make([]string, 0, len(schema.Classes))
	for _, c := range schema.Classes {
		names = append(names, c.Class)
	}
	return names, nil
}

func (s *WeaviateStore) Close() error { return nil }

func propertiesFor(name string) []string {
	if name == CollectionPulsePJ {
		return PulseProperties
	}
	return CaseProperties
}

func formatVector(vec []float64) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// formatWhere 生成等值过滤条件，多个字段用 And 连接
func formatWhere(filter map[string]string) string {
	var operands []string
	for key, value := range filter {
		operands = append(operands, fmt.Sprintf(
			`{path: [%q], operator: Equal, valueString: %q}`, key, value))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return fmt.Sprintf(`{operator: And, operands: [%s]}`, strings.Join(operands, ", "))
}

func parseSearchResponse(body []byte, name string) ([]*SearchResult, error) {
	var raw struct {
		Data struct {
			Get map[string][]map[string]any `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}
	if len(raw.Errors) > 0 {
		return nil, fmt.Errorf("检索 %s 出错: %s", name, raw.Errors[0].Message)
	}

	items := raw.Data.Get[name]
	results := make([]*SearchResult, 0, len(items))
	for _, item := range items {
		result := &SearchResult{}
		if add, ok := item["_additional"].(map[string]any); ok {
			if id, ok := add["id"].(string); ok {
				result.ID = id
			}
			if certainty, ok := add["certainty"].(float64); ok {
				result.Score = certainty
			}
			delete(item, "_additional")
		}
		result.Metadata = toStringMap(item)
		results = append(results, result)
	}
	return results, nil
}

func toStringMap(properties map[string]any) map[string]string {
	out := make(map[string]string, len(properties))
	for key, value := range properties {
		switch v := value.(type) {
		case string:
			out[key] = v
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[key] = strconv.FormatBool(v)
		case nil:
			out[key] = ""
		default:
			if buf, err := json.Marshal(v); err == nil {
				out[key] = string(buf)
			}
		}
	}
	return out
}
