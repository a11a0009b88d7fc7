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

// Package cbr 实现病例检索推理：匿名查询、个人化查询、
// 权重排序聚合与推理链、推理树生成。
package cbr

import (
	"context"
	"strings"

	"tcm-cbr/internal/model/embedding"
	"tcm-cbr/internal/storage/vector"
	"tcm-cbr/pkg/log"
	"tcm-cbr/pkg/metrics"
)

// ReasoningLogger 推理链落盘接口
type ReasoningLogger interface {
	SaveReasoningLog(logID string, chain any, tree any, meta map[string]any) error
}

// Engine 检索推理引擎
type Engine struct {
	store    vector.Store
	embedder embedding.Embedder
	logs     ReasoningLogger
	logger   *log.Logger
	topN     int
}

// Retrieval 一次查询的完整检索结果
type Retrieval struct {
	Results map[string][]Hit `json:"results"`
	Chain   []Step           `json:"reasoning_chain"`
	Tree    TreeNode         `json:"tree"`
}

// NewEngine 创建检索引擎；logs 可为 nil（不落盘推理链）
func NewEngine(store vector.Store, embedder embedding.Embedder, logs ReasoningLogger, logger *log.Logger, topN int) *Engine {
	if topN <= 0 {
		topN = 5
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		logs:     logs,
		logger:   logger,
		topN:     topN,
	}
}

// AnonymousQuery 方案A：无身分查询。
// 对 Case 与 PulsePJ 做语意检索，单库失败降级为空命中，不中断流程
func (e *Engine) AnonymousQuery(ctx context.Context, queryText string, topN int, logID string) *Retrieval {
	if topN <= 0 {
		topN = e.topN
	}
	var chain []Step

	queryVec := e.embedQuery(ctx, queryText)

	var caseHits []Hit
	if queryVec != nil {
		caseHits = e.searchCases(ctx, vector.CollectionCase, queryVec, nil, topN)
		caseHits = SortByWeight(caseHits, "主病")
		chain = append(chain, Step{
			Label:   "case查詢",
			Input:   queryText,
			TopHits: caseHits,
			Reason:  "症狀語意查詢病例庫",
		})
	}

	var pulseHits []Hit
	if queryVec != nil {
		pulseHits = e.searchPulse(ctx, queryVec, topN)
		chain = append(chain, Step{
			Label:   "PulsePJ查詢",
			Input:   queryText,
			TopHits: pulseHits,
			Reason:  "症狀語意查詢脈象庫（知識型資料庫）",
		})
	}

	return e.finish(logID, chain, map[string][]Hit{
		"case":    caseHits,
		"PulsePJ": pulseHits,
		"all":     Aggregate(caseHits, pulseHits),
	})
}

// PersonalQuery 方案B：个人化查询。
// 先按 case_id 过滤 PCD 取出个案主病，再以主病关键字检索 Case 与 PulsePJ
func (e *Engine) PersonalQuery(ctx context.Context, pid, queryText string, topN int, logID string) *Retrieval {
	if topN <= 0 {
		topN = e.topN
	}
	var chain []Step

	pcdHits := e.searchCases(ctx, vector.CollectionPCD, nil, map[string]string{"case_id": pid}, topN)
	var mainSymptoms []string
	for _, h := range pcdHits {
		mainSymptoms = append(mainSymptoms, mainDiseaseNames(h)...)
	}
	pcdHits = SortByWeight(pcdHits, "主病")
	chain = append(chain, Step{
		Label:   "PCD查詢",
		Input:   pid,
		TopHits: pcdHits,
		Reason:  "以個案身分查詢完整病歷",
	})

	var caseHits, pulseHits []Hit
	if len(mainSymptoms) > 0 {
		keyword := strings.Join(mainSymptoms, "、")
		keywordVec := e.embedQuery(ctx, keyword)
		if keywordVec != nil {
			caseHits = SortByWeight(e.searchCases(ctx, vector.CollectionCase, keywordVec, nil, topN), "主病")
			chain = append(chain, Step{
				Label:   "case查詢",
				Input:   keyword,
				TopHits: caseHits,
				Reason:  "主病關鍵字查詢病例庫",
			})
			pulseHits = e.searchPulse(ctx, keywordVec, topN)
			chain = append(chain, Step{
				Label:   "PulsePJ查詢",
				Input:   keyword,
				TopHits: pulseHits,
				Reason:  "主病關鍵字查詢脈象庫（知識型資料庫）",
			})
		}
	}

	return e.finish(logID, chain, map[string][]Hit{
		"PCD":     pcdHits,
		"case":    caseHits,
		"PulsePJ": pulseHits,
		"all":     Aggregate(pcdHits, caseHits, pulseHits),
	})
}

// PulseMainDisease 查询与摘要最相似的脉象主病，无命中返回空串
func (e *Engine) PulseMainDisease(ctx context.Context, summary string) string {
	vec := e.embedQuery(ctx, summary)
	if vec == nil {
		return ""
	}
	results, err := e.store.Search(ctx, vector.CollectionPulsePJ, vec, &vector.SearchOptions{
		TopK:      1,
		Threshold: 0.5,
	})
	if err != nil || len(results) == 0 {
		return ""
	}
	return results[0].Metadata["main_disease"]
}

func (e *Engine) embedQuery(ctx context.Context, text string) []float64 {
	if text == "" {
		return nil
	}
	vec, err := e.embedder.Embed(ctx, text, embedding.ModeQuery)
	if err != nil {
		e.logger.Warn("查詢嵌入失敗，降級為空結果", "error", err)
		metrics.RetrievalFailTotal.WithLabelValues("embed", "embed_error").Inc()
		return nil
	}
	return vec
}

func (e *Engine) searchCases(ctx context.Context, collection string, query []float64, filter map[string]string, topN int) []Hit {
	results, err := e.store.Search(ctx, collection, query, &vector.SearchOptions{
		TopK:   topN,
		Filter: filter,
	})
	if err != nil {
		e.logger.Warn("病例檢索失敗", "collection", collection, "error", err)
		metrics.RetrievalFailTotal.WithLabelValues(collection, "search_error").Inc()
		return nil
	}
	metrics.RetrievalHits.WithLabelValues(collection).Observe(float64(len(results)))
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, HitFromResult(r))
	}
	return hits
}

func (e *Engine) searchPulse(ctx context.Context, query []float64, topN int) []Hit {
	results, err := e.store.Search(ctx, vector.CollectionPulsePJ, query, &vector.SearchOptions{TopK: topN})
	if err != nil {
		e.logger.Warn("脈象檢索失敗", "error", err)
		metrics.RetrievalFailTotal.WithLabelValues(vector.CollectionPulsePJ, "search_error").Inc()
		return nil
	}
	metrics.RetrievalHits.WithLabelValues(vector.CollectionPulsePJ).Observe(float64(len(results)))
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, PulseToHit(r))
	}
	return hits
}

func (e *Engine) finish(logID string, chain []Step, results map[string][]Hit) *Retrieval {
	tree := ChainToTree(chain)
	if logID != "" && e.logs != nil {
		if err := e.logs.SaveReasoningLog(logID, chain, tree, nil); err != nil {
			e.logger.Warn("推理鏈落盤失敗", "log_id", logID, "error", err)
		}
	}
	return &Retrieval{Results: results, Chain: chain, Tree: tree}
}

// mainDiseaseNames 取出 llm_struct 主病名称列表
func mainDiseaseNames(h Hit) []string {
	if h.LLMStruct == nil {
		return nil
	}
	items, ok := h.LLMStruct["主病"].([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) == 0 {
			continue
		}
		if name, ok := pair[0].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}
