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

package cbr

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"tcm-cbr/internal/storage/vector"
)

// Hit 一笔检索命中，病例与脉象知识统一为此格式
type Hit struct {
	CaseID    string            `json:"case_id"`
	Timestamp string            `json:"timestamp,omitempty"`
	Summary   string            `json:"summary"`
	Score     float64           `json:"score,omitempty"`
	LLMStruct map[string]any    `json:"llm_struct"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// HitFromResult 将病例检索结果转为 Hit，llm_struct 字段由 JSON 字符串还原；
// 解析失败时保留原始字符串
func HitFromResult(r *vector.SearchResult) Hit {
	h := Hit{
		CaseID:    r.Metadata["case_id"],
		Timestamp: r.Metadata["timestamp"],
		Summary:   r.Metadata["summary"],
		Score:     r.Score,
		Fields:    r.Metadata,
	}
	raw := r.Metadata["llm_struct"]
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		h.LLMStruct = parsed
	} else if raw != "" {
		h.LLMStruct = map[string]any{"raw": raw}
	}
	return h
}

// PulseToHit 将脉象知识库结果 mapping 为统一的 Hit 格式，主病权重固定为 1
func PulseToHit(r *vector.SearchResult) Hit {
	name := r.Metadata["name"]
	description := r.Metadata["description"]
	mainDisease := r.Metadata["main_disease"]
	symptoms := parseSymptoms(r.Metadata["symptoms"])

	caseID := r.Metadata["neo4j_id"]
	if caseID == "" {
		caseID = r.ID
	}
	summary := name + "：" + description + "；主病：" + mainDisease +
		"；現代病症：" + strings.Join(symptoms, ",")
	return Hit{
		CaseID:  caseID,
		Summary: summary,
		Score:   r.Score,
		LLMStruct: map[string]any{
			"主病":  []any{[]any{mainDisease, float64(1)}},
			"症狀":  symptoms,
			"知識鏈": r.Metadata["knowledge_chain"],
		},
		Fields: r.Metadata,
	}
}

// parseSymptoms 症狀字段可能是 JSON 数组字符串或逗号分隔
func parseSymptoms(raw string) []string {
	if raw == "" {
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr
	}
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// maxWeight 取 llm_struct[key] 中的最大权重；结构不符返回 0
func maxWeight(h Hit, key string) float64 {
	if h.LLMStruct == nil {
		return 0
	}
	items, ok := h.LLMStruct[key].([]any)
	if !ok {
		return 0
	}
	best := 0.0
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		if w := asFloat(pair[1]); w > best {
			best = w
		}
	}
	return best
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	case int:
		return float64(x)
	}
	return 0
}

// SortByWeight 按主病最大权重降序排序，稳定排序保持同权原序
func SortByWeight(hits []Hit, key string) []Hit {
	sorted := make([]Hit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return maxWeight(sorted[i], key) > maxWeight(sorted[j], key)
	})
	return sorted
}

// Deduplicate 按 case_id 去重，保留首次出现
func Deduplicate(hits []Hit) []Hit {
	seen := make(map[string]bool, len(hits))
	unique := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if seen[h.CaseID] {
			continue
		}
		seen[h.CaseID] = true
		unique = append(unique, h)
	}
	return unique
}

// Aggregate 合并多组命中结果：去重后按主病权重排序
func Aggregate(hitLists ...[]Hit) []Hit {
	var all []Hit
	for _, l := range hitLists {
		all = append(all, l...)
	}
	return SortByWeight(Deduplicate(all), "主病")
}
