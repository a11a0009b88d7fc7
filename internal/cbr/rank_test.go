package cbr

import (
	"reflect"
	"testing"

	"tcm-cbr/internal/storage/vector"
)

func hitWithWeight(id string, w any) Hit {
	return Hit{
		CaseID: id,
		LLMStruct: map[string]any{
			"主病": []any{[]any{"心脾兩虛", w}},
		},
	}
}

func TestSortByWeightStable(t *testing.T) {
	hits := []Hit{
		hitWithWeight("a", 0.9),
		hitWithWeight("b", 0.3),
		hitWithWeight("c", 0.9),
	}
	sorted := SortByWeight(hits, "主病")
	got := []string{sorted[0].CaseID, sorted[1].CaseID, sorted[2].CaseID}
	// 同權重保持原順序
	want := []string{"a", "c", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("排序結果 %v, 期望 %v", got, want)
	}
}

func TestSortByWeightMalformed(t *testing.T) {
	hits := []Hit{
		{CaseID: "bad", LLMStruct: map[string]any{"主病": "不是列表"}},
		hitWithWeight("good", 0.5),
		{CaseID: "nil"},
	}
	sorted := SortByWeight(hits, "主病")
	if sorted[0].CaseID != "good" {
		t.Errorf("解析失敗權重應視為 0, got %v", sorted[0].CaseID)
	}
}

func TestSortByWeightStringWeight(t *testing.T) {
	hits := []Hit{
		hitWithWeight("a", "0.4"),
		hitWithWeight("b", "0.8"),
	}
	sorted := SortByWeight(hits, "主病")
	if sorted[0].CaseID != "b" {
		t.Errorf("字串權重應可解析, got %v", sorted[0].CaseID)
	}
}

func TestDeduplicateFirstWins(t *testing.T) {
	hits := []Hit{
		{CaseID: "c1", Summary: "第一筆"},
		{CaseID: "c2"},
		{CaseID: "c1", Summary: "重複"},
	}
	unique := Deduplicate(hits)
	if len(unique) != 2 {
		t.Fatalf("去重後應為 2 筆, got %d", len(unique))
	}
	if unique[0].Summary != "第一筆" {
		t.Errorf("應保留首次出現的記錄")
	}
	// 冪等
	again := Deduplicate(unique)
	if !reflect.DeepEqual(unique, again) {
		t.Errorf("去重應為冪等")
	}
}

func TestAggregate(t *testing.T) {
	listA := []Hit{hitWithWeight("a", 0.3)}
	listB := []Hit{hitWithWeight("b", 0.9), hitWithWeight("a", 0.99)}
	combined := Aggregate(listA, listB)
	if len(combined) != 2 {
		t.Fatalf("聚合後應為 2 筆, got %d", len(combined))
	}
	// a 先出現，保留其 0.3 權重，排序在 b 之後
	if combined[0].CaseID != "b" {
		t.Errorf("聚合排序錯誤: %v", combined[0].CaseID)
	}
}

func TestHitFromResult(t *testing.T) {
	h := HitFromResult(&vector.SearchResult{
		Score: 0.8,
		Metadata: map[string]string{
			"case_id":    "c1",
			"summary":    "失眠",
			"llm_struct": `{"主病":[["心脾兩虛",0.8]]}`,
		},
	})
	if h.CaseID != "c1" || h.Summary != "失眠" {
		t.Errorf("基本欄位不符: %+v", h)
	}
	if maxWeight(h, "主病") != 0.8 {
		t.Errorf("llm_struct 未正確還原")
	}
}

func TestHitFromResultBadJSON(t *testing.T) {
	h := HitFromResult(&vector.SearchResult{
		Metadata: map[string]string{"case_id": "c1", "llm_struct": "not json"},
	})
	if h.LLMStruct["raw"] != "not json" {
		t.Errorf("解析失敗應保留原始字串: %v", h.LLMStruct)
	}
}

func TestPulseToHit(t *testing.T) {
	h := PulseToHit(&vector.SearchResult{
		ID: "uuid-1",
		Metadata: map[string]string{
			"neo4j_id":     "p7",
			"name":         "弦脈",
			"description":  "端直以長",
			"main_disease": "肝鬱氣滯",
			"symptoms":     `["胸悶","易怒"]`,
		},
	})
	if h.CaseID != "p7" {
		t.Errorf("case_id 應取 neo4j_id, got %s", h.CaseID)
	}
	if maxWeight(h, "主病") != 1 {
		t.Errorf("脈象主病權重應固定為 1")
	}
	if h.Summary == "" || h.Summary[0:len("弦脈")] != "弦脈" {
		t.Errorf("summary 格式不符: %s", h.Summary)
	}
}

func TestParseSymptomsFallback(t *testing.T) {
	got := parseSymptoms("胸悶, 易怒")
	want := []string{"胸悶", "易怒"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("逗號分隔解析失敗: %v", got)
	}
}
