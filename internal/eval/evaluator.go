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

// Package eval 以 LLM 对实验结果做语意相似度评分。
package eval

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"tcm-cbr/internal/model/llm"
	"tcm-cbr/pkg/log"
)

// scorePrompt 评分模板：标准诊断 vs 模型预测
const scorePrompt = `你是中醫診斷評估專家。請評估以下兩個診斷結果的語意相似度。

標準診斷: "%s"
模型預測: "%s"

請給出一個 0.0 到 1.0 之間的分數：
- 1.0: 完全一致或同義詞 (如 不寐=失眠, 肝鬱氣滯=肝氣鬱結)
- 0.8: 高度相似，核心證型正確但有細微差異 (如 心脾兩虛 vs 心脾不足)
- 0.5: 部分正確，命中部分關鍵字 (如 腎陰虛 vs 腎虛)
- 0.0: 完全錯誤或不相關

請只輸出分數數字，不要有其他文字。`

// Evaluator 批量评分器
type Evaluator struct {
	client  llm.Client
	logger  *log.Logger
	workers int
}

// NewEvaluator 创建评分器，workers <= 0 时默认 5 个并发
func NewEvaluator(client llm.Client, logger *log.Logger, workers int) *Evaluator {
	if workers <= 0 {
		workers = 5
	}
	return &Evaluator{client: client, logger: logger, workers: workers}
}

// Row 一笔实验结果
type Row struct {
	Fields   []string
	Expected string
	Pred     string
	HasError bool
}

// Result 评分结果
type Result struct {
	Rows    [][]string
	Header  []string
	Average float64
}

// Run 读取 CSV、并发评分、输出带 LLM_Score 列的 CSV。
// 需要 Expected 与 PredPattern 两列；Error 列非空的行直接记 0 分
func (e *Evaluator) Run(ctx context.Context, in io.Reader, out io.Writer) (*Result, error) {
	reader := csv.NewReader(in)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("讀取 CSV 失敗: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV 為空")
	}

	header := records[0]
	expectedIdx, predIdx, errorIdx := -1, -1, -1
	for i, name := range header {
		switch name {
		case "Expected":
			expectedIdx = i
		case "PredPattern":
			predIdx = i
		case "Error":
			errorIdx = i
		}
	}
	if expectedIdx < 0 || predIdx < 0 {
		return nil, fmt.Errorf("CSV 缺少 Expected 或 PredPattern 欄位")
	}

	rows := records[1:]
	scores := make([]float64, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, row := range rows {
		g.Go(func() error {
			if errorIdx >= 0 && errorIdx < len(row) && row[errorIdx] != "" {
				scores[i] = 0
				return nil
			}
			pred := ""
			if predIdx < len(row) {
				pred = row[predIdx]
			}
			expected := ""
			if expectedIdx < len(row) {
				expected = row[expectedIdx]
			}
			scores[i] = e.score(gctx, pred, expected)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outHeader := append(append([]string{}, header...), "LLM_Score")
	writer := csv.NewWriter(out)
	if err := writer.Write(outHeader); err != nil {
		return nil, err
	}
	total := 0.0
	outRows := make([][]string, 0, len(rows))
	for i, row := range rows {
		total += scores[i]
		outRow := append(append([]string{}, row...), strconv.FormatFloat(scores[i], 'f', 2, 64))
		outRows = append(outRows, outRow)
		if err := writer.Write(outRow); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	average := 0.0
	if len(rows) > 0 {
		average = total / float64(len(rows))
	}
	e.logger.Info("評分完成", "rows", len(rows), "average", average)
	return &Result{Rows: outRows, Header: outHeader, Average: average}, nil
}

// score 单笔评分；预测为空或调用失败记 0 分
func (e *Evaluator) score(ctx context.Context, pred, expected string) float64 {
	if pred == "" {
		return 0
	}
	out, err := e.client.Generate(ctx, fmt.Sprintf(scorePrompt, expected, pred), llm.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		e.logger.Warn("LLM 評分失敗", "error", err)
		return 0
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		e.logger.Warn("評分輸出無法解析", "output", out)
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
