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

// Package cases 病历去识别化、文件存储与 save→normalize→triage→upload 流水线
package cases

import (
	"fmt"
	"strconv"
	"strings"
)

// DeidentifiedView 去识别视图：前端异构键名归一后的统一病历投影
type DeidentifiedView struct {
	Age            *int     `json:"age"`
	Gender         string   `json:"gender"`
	ChiefComplaint string   `json:"chief_complaint"`
	PresentIllness string   `json:"present_illness"`
	ProvisionalDx  string   `json:"provisional_dx"`
	PulseText      string   `json:"pulse_text"`
	InspectionTags []string `json:"inspection_tags"`
	InquiryTags    []string `json:"inquiry_tags"`
	PulseTags      []string `json:"pulse_tags"`
	SummaryText    string   `json:"summary_text"` // 不可为空，兜底占位符
}

// emptySummaryPlaceholder 所有结构化字段均为空时的摘要占位
const emptySummaryPlaceholder = "（無敘述）"

// getStr 按候选键序取第一个非空字符串并去除首尾空白
func getStr(d map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := d[k].(string); ok {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// subMap 取嵌套对象，不存在或类型不符时返回 nil
func subMap(d map[string]any, key string) map[string]any {
	m, _ := d[key].(map[string]any)
	return m
}

// getAge 解析 age / basic.age，数值或数字字符串均可；解析失败返回 nil，从不报错
func getAge(d map[string]any) *int {
	raw, ok := d["age"]
	if !ok || raw == nil {
		if basic := subMap(d, "basic"); basic != nil {
			raw = basic["age"]
		}
	}
	if raw == nil {
		return nil
	}
	var s string
	switch v := raw.(type) {
	case float64:
		age := int(v)
		return &age
	case int:
		age := v
		return &age
	case string:
		s = strings.TrimSpace(v)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// stringList 将 []any / []string 统一转为 []string
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// firstTags 按候选键序取第一组非空标签
func firstTags(d map[string]any, keys ...string) []string {
	for _, k := range keys {
		if tags := stringList(d[k]); len(tags) > 0 {
			return tags
		}
	}
	return nil
}

// BuildDeidentifiedView 建立去识别视图
// 兼容前端可能的键名（camelCase / snake_case / 嵌套 basic.* inquiry.* inspection.*），
// 所有字符串 Trim，缺失时沿候选键序回退；summary_text 保证非空。
func BuildDeidentifiedView(data map[string]any) *DeidentifiedView {
	gender := getStr(data, "gender", "sex")
	if gender == "" {
		if basic := subMap(data, "basic"); basic != nil {
			gender = getStr(basic, "gender", "sex")
		}
	}

	chief := getStr(data, "chief_complaint", "chiefComplaint")
	if chief == "" {
		if iq := subMap(data, "inquiry"); iq != nil {
			chief = getStr(iq, "chief_complaint", "chiefComplaint")
		}
	}

	present := getStr(data, "present_illness", "presentIllness")
	if present == "" {
		if iq := subMap(data, "inquiry"); iq != nil {
			present = getStr(iq, "present_illness", "presentIllness")
		}
	}

	provisional := getStr(data, "provisional_dx", "provisionalDx")
	if provisional == "" {
		if iq := subMap(data, "inquiry"); iq != nil {
			// 前端表单字段名：tentativeDiagnosis
			provisional = getStr(iq, "provisional_dx", "provisionalDx", "tentativeDiagnosis")
		}
	}

	pulseText := getStr(data, "pulse_text", "pulseText")
	inspectionTags := firstTags(data, "inspection_tags", "inspectionTags")
	inquiryTags := firstTags(data, "inquiry_tags", "inquiryTags")
	pulseTags := firstTags(data, "pulse_tags", "pulseTags")

	// 未提供 *_tags 时从前端嵌套字段聚合
	if len(inspectionTags) == 0 {
		if ins := subMap(data, "inspection"); ins != nil {
			for _, k := range []string{"bodyShape", "faceColor", "eye", "skin"} {
				inspectionTags = append(inspectionTags, stringList(ins[k])...)
			}
		}
	}
	if len(inquiryTags) == 0 {
		if iq := subMap(data, "inquiry"); iq != nil {
			for _, k := range []string{"sleep", "spirit"} {
				inquiryTags = append(inquiryTags, stringList(iq[k])...)
			}
		}
	}

	view := &DeidentifiedView{
		Age:            getAge(data),
		Gender:         gender,
		ChiefComplaint: chief,
		PresentIllness: present,
		ProvisionalDx:  provisional,
		PulseText:      pulseText,
		InspectionTags: inspectionTags,
		InquiryTags:    inquiryTags,
		PulseTags:      pulseTags,
	}
	view.SummaryText = buildSummaryText(view)
	return view
}

// buildSummaryText 构造摘要（不可为空）
func buildSummaryText(v *DeidentifiedView) string {
	var parts []string
	if v.ChiefComplaint != "" {
		parts = append(parts, "[主訴] "+v.ChiefComplaint)
	}
	if v.PresentIllness != "" {
		parts = append(parts, "[現病史] "+v.PresentIllness)
	}
	if v.PulseText != "" {
		parts = append(parts, "[脈象] "+v.PulseText)
	}
	if v.ProvisionalDx != "" {
		parts = append(parts, "[暫定診斷] "+v.ProvisionalDx)
	}
	summary := strings.TrimSpace(strings.Join(parts, "\n"))
	if summary == "" {
		return emptySummaryPlaceholder
	}
	return summary
}

// BuildCaseSummary 从原始病历 JSON 合并五段摘要（主訴/現病史/望診/問診/脈診）
// 支持 summary 区块或顶层字段，供 /api/diagnose 重新摘要使用。
func BuildCaseSummary(caseData map[string]any) string {
	summaryBlock := caseData
	if sb := subMap(caseData, "summary"); sb != nil {
		summaryBlock = sb
	}

	chief := getStr(summaryBlock, "主訴")
	if chief == "" {
		if iq := subMap(caseData, "inquiry"); iq != nil {
			chief = getStr(iq, "chiefComplaint", "chief_complaint")
		}
	}
	present := getStr(summaryBlock, "現病史")
	if present == "" {
		if iq := subMap(caseData, "inquiry"); iq != nil {
			present = getStr(iq, "presentIllness", "present_illness")
		}
	}

	var sections []string
	if chief != "" {
		sections = append(sections, "[主訴] "+chief)
	}
	if present != "" {
		sections = append(sections, "[現病史] "+present)
	}
	for _, key := range []string{"望診", "問診", "脈診"} {
		if val := getStr(summaryBlock, key); val != "" {
			sections = append(sections, "["+key+"] "+val)
		}
	}
	return strings.Join(sections, "\n")
}
