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

package cases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tcm-cbr/internal/cbr"
	"tcm-cbr/internal/model/embedding"
	"tcm-cbr/internal/model/llm"
	"tcm-cbr/internal/prompt"
	"tcm-cbr/internal/storage/vector"
	"tcm-cbr/pkg/errors"
	"tcm-cbr/pkg/log"
	"tcm-cbr/pkg/metrics"
)

// 病历处理的四个阶段
const (
	StageSave      = "save"
	StageNormalize = "normalize"
	StageTriage    = "triage"
	StageUpload    = "upload"
)

// Pipeline 病历处理流水线：保存 → 去识别化 → LLM 初诊 → 向量上传。
// 各阶段失败直接终止，不回滚已完成阶段，已产生的标识随结果返回
type Pipeline struct {
	store    *Store
	vectors  vector.Store
	embedder embedding.Embedder
	llm      llm.Client
	engine   *cbr.Engine
	logger   *log.Logger
}

func NewPipeline(store *Store, vectors vector.Store, embedder embedding.Embedder, client llm.Client, engine *cbr.Engine, logger *log.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		llm:      client,
		engine:   engine,
		logger:   logger,
	}
}

// SaveResult 保存流程的结果；失败时 Stage 标明出错阶段，
// 已完成阶段产生的文件与标识保留
type SaveResult struct {
	OK        bool           `json:"ok"`
	ReqID     string         `json:"req_id"`
	File      string         `json:"file,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	LLMStruct map[string]any `json:"llm_struct,omitempty"`
	Uploaded  bool           `json:"uploaded"`
	Stage     string         `json:"stage,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// SaveCase 完整保存流程
func (p *Pipeline) SaveCase(ctx context.Context, data map[string]any) *SaveResult {
	result := &SaveResult{ReqID: uuid.NewString()}
	logger := p.logger.With("req_id", result.ReqID)

	// 一、保存原始病历
	file, err := p.store.SaveRaw(data)
	if err != nil {
		return p.fail(result, StageSave, err, logger)
	}
	result.File = file
	metrics.CaseSaveTotal.WithLabelValues(StageSave, "ok").Inc()
	logger.Info("病歷已保存", "file", file)

	// 二、去识别化摘要
	view := BuildDeidentifiedView(data)
	if view.SummaryText == emptySummaryPlaceholder {
		return p.fail(result, StageNormalize, errors.Wrap(errors.ErrInvalidArg, "摘要為空"), logger)
	}
	result.Summary = view.SummaryText
	metrics.CaseSaveTotal.WithLabelValues(StageNormalize, "ok").Inc()

	// 三、两阶段 LLM 初诊
	diagnosis, _, stage2Output, err := p.triage(ctx, view.SummaryText)
	if err != nil {
		return p.fail(result, StageTriage, err, logger)
	}
	result.LLMStruct = diagnosis.Map()
	metrics.CaseSaveTotal.WithLabelValues(StageTriage, "ok").Inc()
	logger.Info("初診完成", "primary", len(diagnosis.Primary), "secondary", len(diagnosis.Secondary))

	// 四、向量化并上传到 Case 与 PCD
	if err := p.upload(ctx, data, file, view.SummaryText, result.LLMStruct, stage2Output); err != nil {
		return p.fail(result, StageUpload, err, logger)
	}
	result.Uploaded = true
	metrics.CaseSaveTotal.WithLabelValues(StageUpload, "ok").Inc()

	result.OK = true
	return result
}

// triage 两阶段推理：先分析症狀與病機，再產出結構化診斷。
// 推理說明缺失时以第二阶段全文回填
func (p *Pipeline) triage(ctx context.Context, summary string) (llm.Diagnosis, string, string, error) {
	options := llm.DefaultOptions()

	stage1Output, err := p.llm.Generate(ctx, prompt.BuildStage1(summary), options)
	if err != nil {
		return llm.Diagnosis{}, "", "", errors.Wrap(err, "第一階段推理失敗")
	}
	stage2Output, err := p.llm.Generate(ctx, prompt.BuildStage2(stage1Output), options)
	if err != nil {
		return llm.Diagnosis{}, stage1Output, "", errors.Wrap(err, "第二階段推理失敗")
	}

	diagnosis := llm.ExtractDiagnosis(stage2Output)
	if diagnosis.Rationale == "" {
		diagnosis.Rationale = stage2Output
	}
	return diagnosis, stage1Output, stage2Output, nil
}

// upload 产生 passage 向量并写入两个集合；
// llm_struct 与 raw_case 以 JSON 字符串存储
func (p *Pipeline) upload(ctx context.Context, data map[string]any, file, summary string, llmStruct map[string]any, _ string) error {
	vec, err := p.embedder.Embed(ctx, summary, embedding.ModePassage)
	if err != nil {
		return errors.Wrap(err, "摘要向量化失敗")
	}

	structBuf, err := json.Marshal(llmStruct)
	if err != nil {
		return errors.Wrap(err, "序列化診斷結構失敗")
	}
	rawBuf, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "序列化原始病歷失敗")
	}

	record := map[string]string{
		"case_id":    file,
		"timestamp":  time.Now().Format(time.RFC3339),
		"summary":    summary,
		"llm_struct": string(structBuf),
		"raw_case":   string(rawBuf),
	}
	for key, value := range flattenPatient(data) {
		record[key] = value
	}

	for _, collection := range []string{vector.CollectionCase, vector.CollectionPCD} {
		err := p.vectors.Add(ctx, collection, []*vector.Vector{
			{ID: uuid.NewString(), Values: vec, Metadata: record},
		})
		if err != nil {
			return errors.Wrapf(err, "上傳到 %s 失敗", collection)
		}
	}
	return nil
}

// flattenPatient 展平 basic 欄位便于快查，id 映射为 patient_id
func flattenPatient(data map[string]any) map[string]string {
	flat := map[string]string{
		"name": "", "gender": "", "age": "", "phone": "", "address": "", "patient_id": "",
	}
	basic, ok := data["basic"].(map[string]any)
	if !ok {
		return flat
	}
	for _, key := range []string{"name", "gender", "phone", "address"} {
		if v, ok := basic[key].(string); ok {
			flat[key] = v
		}
	}
	switch v := basic["age"].(type) {
	case string:
		flat["age"] = v
	case float64:
		flat["age"] = jsonNumber(v)
	}
	if id, ok := basic["id"].(string); ok {
		flat["patient_id"] = id
	}
	return flat
}

func jsonNumber(v float64) string {
	buf, _ := json.Marshal(v)
	return string(buf)
}

// DiagnoseResult 既有病历再诊断的结果
type DiagnoseResult struct {
	SummaryFile        string         `json:"summary_file"`
	Summary            string         `json:"summary"`
	Stage1Output       string         `json:"step1_output"`
	Stage2Output       string         `json:"step2_output"`
	LLMStruct          map[string]any `json:"llm_struct"`
	LLMMainDisease     string         `json:"llm_main_disease"`
	FormulaMainDisease string         `json:"formula_main_disease"`
	ScoreErrorFormula  int            `json:"score_error_formula"`
	Timestamp          string         `json:"timestamp"`
}

// DiagnoseCase 对已保存的病历执行诊断：摘要、脉象主病比对、
// 两阶段 LLM 推理，并写入摘要档
func (p *Pipeline) DiagnoseCase(ctx context.Context, fileName string) (*DiagnoseResult, error) {
	data, err := p.store.LoadRaw(fileName)
	if err != nil {
		return nil, err
	}

	summary := BuildCaseSummary(data)
	if summary == "" {
		view := BuildDeidentifiedView(data)
		if view.SummaryText == emptySummaryPlaceholder {
			return nil, errors.Wrap(errors.ErrInvalidArg, "摘要為空，診斷失敗")
		}
		summary = view.SummaryText
	}

	// 脉象知识库主病比对
	formulaMainDisease := ""
	if p.engine != nil {
		formulaMainDisease = p.engine.PulseMainDisease(ctx, summary)
	}

	diagnosis, stage1Output, stage2Output, err := p.triage(ctx, summary)
	if err != nil {
		return nil, err
	}

	llmMainDisease := ""
	if len(diagnosis.Primary) > 0 {
		llmMainDisease = diagnosis.Primary[0].Name
	}
	scoreError := 0
	if llmMainDisease != formulaMainDisease {
		scoreError = 1
	}

	result := &DiagnoseResult{
		Summary:            summary,
		Stage1Output:       stage1Output,
		Stage2Output:       stage2Output,
		LLMStruct:          diagnosis.Map(),
		LLMMainDisease:     llmMainDisease,
		FormulaMainDisease: formulaMainDisease,
		ScoreErrorFormula:  scoreError,
		Timestamp:          time.Now().Format("2006-01-02 15:04:05"),
	}

	summaryFile, err := p.store.SaveSummary(fileName, map[string]any{
		"case_file":            fileName,
		"summary":              summary,
		"step1_output":         stage1Output,
		"step2_output":         stage2Output,
		"llm_struct":           result.LLMStruct,
		"llm_main_disease":     llmMainDisease,
		"formula_main_disease": formulaMainDisease,
		"score_error_formula":  scoreError,
		"timestamp":            result.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	result.SummaryFile = summaryFile
	return result, nil
}

func (p *Pipeline) fail(result *SaveResult, stage string, err error, logger *log.Logger) *SaveResult {
	metrics.CaseSaveTotal.WithLabelValues(stage, "error").Inc()
	logger.Error("病歷處理失敗", "stage", stage, "error", err)
	stageErr := errors.NewStageError(stage, err)
	result.Stage = stage
	result.Error = stageErr.Error()
	return result
}
