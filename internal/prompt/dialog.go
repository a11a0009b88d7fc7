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

package prompt

import (
	"fmt"
	"strings"

	"tcm-cbr/internal/cbr"
)

// BuildDialog 根據推理鏈生成臨床回饋文字，
// 病例與脈象知識庫命中統一顯示
func BuildDialog(chain []cbr.Step) string {
	var lines []string
	for _, step := range chain {
		lines = append(lines, fmt.Sprintf("【%s】%s", step.Label, step.Reason))
		if len(step.TopHits) == 0 {
			continue
		}
		first := step.TopHits[0]
		if first.LLMStruct == nil {
			continue
		}
		if main, ok := first.LLMStruct["主病"]; ok {
			if line := mainSuggestion(main); line != "" {
				lines = append(lines, line)
			}
		}
		if knowledge, ok := first.LLMStruct["知識鏈"].(string); ok && knowledge != "" {
			lines = append(lines, "知識鏈說明："+knowledge)
		}
	}
	return strings.Join(lines, "\n")
}

func mainSuggestion(main any) string {
	switch m := main.(type) {
	case []any:
		if len(m) == 0 {
			return ""
		}
		if pair, ok := m[0].([]any); ok && len(pair) >= 2 {
			return fmt.Sprintf("→ 主要建議：%v（權重%v）", pair[0], pair[1])
		}
		return ""
	case string:
		return "→ 主要建議：" + m
	}
	return ""
}
