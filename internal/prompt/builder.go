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

// Package prompt 组装送给 LLM 的各类诊断 prompt。
package prompt

import (
	"fmt"
	"strings"

	"tcm-cbr/internal/cbr"
)

// diagnosisTemplate 标准辨证论治模板，%s 为病历摘要
const diagnosisTemplate = `你是一位臨床中醫師。根據下列病歷摘要，請執行「辨證論治」：
1. 列出主要病症（主病）、次要病症（次病）。
2. 為每個病症分配 0-1 的權重（愈關鍵愈高，並附在病症後括號內，例：腹痛(0.8)）。
3. 說明你如何從脈象、症狀等推斷主病與次病（分點列出理由）。

【病歷摘要】
%s

【請依下列格式回答】
主病：
- XXX（權重）
- ...
次病：
- XXX（權重）
- ...
推理說明：
- ...`

// BuildDiagnosis 單一病歷摘要的標準診斷 prompt
func BuildDiagnosis(summary string) string {
	return fmt.Sprintf(diagnosisTemplate, summary)
}

// BuildStage1 第一階段：從摘要萃取症狀要點與病機分析
func BuildStage1(summary string) string {
	return fmt.Sprintf(`你是一位臨床中醫師。請閱讀下列病歷摘要，逐項分析：
1. 萃取關鍵症狀與體徵（含脈象、舌象）。
2. 分析可能的病機與臟腑歸屬。
3. 不需要下最終診斷，只需列出分析要點。

【病歷摘要】
%s`, summary)
}

// BuildStage2 第二階段：根據第一階段分析產出結構化診斷
func BuildStage2(stage1Output string) string {
	return fmt.Sprintf(`根據下列症狀與病機分析，請完成「辨證論治」診斷：
1. 列出主病與次病，並為每個病症分配 0-1 的權重（附在病症後括號內，例：腹痛(0.8)）。
2. 以「推理說明：」開頭說明診斷依據。

【分析內容】
%s

【請依下列格式回答】
主病：
- XXX（權重）
- ...
次病：
- XXX（權重）
- ...
推理說明：
- ...`, stage1Output)
}

// BuildSpiral 多案例 CBR 比對推理 prompt：
// 檢索到的案例摘要逐一列出，最後附上查詢病例
func BuildSpiral(hits []cbr.Hit, querySummary string) string {
	var blocks []string
	for i, h := range hits {
		blocks = append(blocks, fmt.Sprintf("【案例%d】\n%s", i+1, h.Summary))
	}
	blocks = append(blocks, "【查詢病例】\n"+querySummary)
	return strings.Join(blocks, "\n\n") +
		"\n請根據上述案例推理最相關的主病與診斷理由，並依主病給出權重與分類依據。"
}

// BuildIntegrated 檢索結果 + 查詢內容的整合診斷 prompt，
// 用於查詢端到端推理（檢索命中直接作為參考案例）
func BuildIntegrated(hits []cbr.Hit, question string) string {
	if len(hits) == 0 {
		return BuildDiagnosis(question)
	}
	return BuildSpiral(hits, question)
}

// BuildCustom 自訂指令 + 摘要的自由風格 prompt
func BuildCustom(summary, instruction string) string {
	return instruction + "\n\n【病歷摘要】\n" + summary
}
