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

package llm

import (
	"regexp"
	"strconv"
	"strings"
)

// PatternWeight 证型及其权重
type PatternWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Diagnosis LLM 诊断回答的结构化结果
type Diagnosis struct {
	Primary   []PatternWeight `json:"primary"`   // 主病
	Secondary []PatternWeight `json:"secondary"` // 次病
	Rationale string          `json:"rationale"` // 推理說明
}

var (
	primarySection   = regexp.MustCompile(`主病[:：][\s\S]*?(- .+?[（(][\d.]+[）)][\s\S]*?)(?:次病|推理說明|$)`)
	secondarySection = regexp.MustCompile(`次病[:：][\s\S]*?(- .+?[（(][\d.]+[）)][\s\S]*?)(?:主病|推理說明|$)`)
	itemPattern      = regexp.MustCompile(`- (.+?)[（(](0?\.?\d+)[）)]`)
	rationalePattern = regexp.MustCompile(`推理說明[:：]([\s\S]*)`)
)

// ExtractDiagnosis 从 LLM 回答中萃取主病、次病、權重與推理說明。
// 格式不符时返回空结构，不报错
func ExtractDiagnosis(response string) Diagnosis {
	var d Diagnosis
	if m := primarySection.FindStringSubmatch(response); m != nil {
		d.Primary = parseItems(m[1])
	}
	if m := secondarySection.FindStringSubmatch(response); m != nil {
		d.Secondary = parseItems(m[1])
	}
	if m := rationalePattern.FindStringSubmatch(response); m != nil {
		d.Rationale = strings.TrimSpace(m[1])
	}
	return d
}

func parseItems(section string) []PatternWeight {
	var items []PatternWeight
	for _, m := range itemPattern.FindAllStringSubmatch(section, -1) {
		w, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		items = append(items, PatternWeight{Name: strings.TrimSpace(m[1]), Weight: w})
	}
	return items
}

// Empty 是否没有任何主病或次病
func (d Diagnosis) Empty() bool {
	return len(d.Primary) == 0 && len(d.Secondary) == 0
}

// Map 转为可 JSON 落盘的结构，键沿用回答中的中文标签，
// 条目为 [名称, 权重] 对
func (d Diagnosis) Map() map[string]any {
	toPairs := func(items []PatternWeight) []any {
		pairs := make([]any, 0, len(items))
		for _, it := range items {
			pairs = append(pairs, []any{it.Name, it.Weight})
		}
		return pairs
	}
	return map[string]any{
		"主病":   toPairs(d.Primary),
		"次病":   toPairs(d.Secondary),
		"推理說明": d.Rationale,
	}
}
