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

package app

import (
	"context"
	"fmt"

	"tcm-cbr/internal/cases"
	"tcm-cbr/internal/cbr"
	"tcm-cbr/internal/model/embedding"
	"tcm-cbr/internal/model/llm"
	"tcm-cbr/internal/prompt"
	"tcm-cbr/internal/runtime/session"
	"tcm-cbr/internal/storage/vector"
	"tcm-cbr/pkg/log"
)

// Service 诊断支持服务：病历保存、检索推理、螺旋会话
type Service struct {
	pipeline *cases.Pipeline
	engine   *cbr.Engine
	llm      llm.Client
	embedder embedding.Embedder
	sessions *session.Manager
	store    *cases.Store
	vectors  vector.Store
	logger   *log.Logger
}

// NewService 装配服务；LLM 与 embedding 客户端由配置创建
func NewService(b *Bootstrap) (*Service, error) {
	llmClient, err := NewLLMClientFromConfig(b.Config)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 客户端失败: %w", err)
	}
	embedder, err := NewEmbedderFromConfig(b.Config, b.CacheStore)
	if err != nil {
		return nil, fmt.Errorf("初始化 embedding 客户端失败: %w", err)
	}
	return NewServiceWith(b, llmClient, embedder), nil
}

// NewServiceWith 以外部提供的模型客户端装配服务，测试时注入假实现
func NewServiceWith(b *Bootstrap, llmClient llm.Client, embedder embedding.Embedder) *Service {
	var reasoningLogs cbr.ReasoningLogger
	if b.CaseStore != nil {
		reasoningLogs = b.CaseStore
	}
	engine := cbr.NewEngine(b.VectorStore, embedder, reasoningLogs, b.Logger, 5)
	pipeline := cases.NewPipeline(b.CaseStore, b.VectorStore, embedder, llmClient, engine, b.Logger)
	maxSessions := 0
	if b.Config != nil {
		maxSessions = b.Config.Session.MaxSessions
	}
	return &Service{
		pipeline: pipeline,
		engine:   engine,
		llm:      llmClient,
		embedder: embedder,
		sessions: session.NewManager(maxSessions),
		store:    b.CaseStore,
		vectors:  b.VectorStore,
		logger:   b.Logger,
	}
}

// SaveCase 完整保存流程
func (s *Service) SaveCase(ctx context.Context, data map[string]any) *cases.SaveResult {
	return s.pipeline.SaveCase(ctx, data)
}

// Diagnose 对已保存病历执行诊断
func (s *Service) Diagnose(ctx context.Context, file string) (*cases.DiagnoseResult, error) {
	return s.pipeline.DiagnoseCase(ctx, file)
}

// PatientInfo 按个案身分查询 PCD 病历，按主病权重排序
func (s *Service) PatientInfo(ctx context.Context, pid string, topN int) []cbr.Hit {
	r := s.engine.PersonalQuery(ctx, pid, "", topN, "")
	return r.Results["PCD"]
}

// QueryRequest 螺旋查询请求
type QueryRequest struct {
	Question  string `json:"query"`
	PatientID string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	TopN      int    `json:"top_n,omitempty"`
}

// QueryResponse 螺旋查询响应
type QueryResponse struct {
	SessionID string         `json:"session_id"`
	Round     int            `json:"round"`
	Retrieval *cbr.Retrieval `json:"retrieval"`
	Dialog    string         `json:"dialog,omitempty"`
	LLMOutput string         `json:"llm_output,omitempty"`
	LLMStruct map[string]any `json:"llm_struct,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Query 螺旋查询：检索 → 排除已用案例 → 整合 prompt → LLM 诊断。
// LLM 失败时仍返回检索结果与推理链
func (s *Service) Query(ctx context.Context, req QueryRequest) *QueryResponse {
	sess := s.sessions.GetOrCreate(req.SessionID, req.Question)
	round := sess.NextRound()
	logID := fmt.Sprintf("%s_r%d", sess.ID, round)

	retrieval := s.engine.Route(ctx, req.PatientID, req.Question, req.TopN, logID)

	// 螺旋推理：排除先前轮次已用过的案例，并记录本轮新用案例
	fresh := make([]cbr.Hit, 0, len(retrieval.Results["all"]))
	for _, h := range retrieval.Results["all"] {
		if !sess.IsUsed(h.CaseID) {
			fresh = append(fresh, h)
			sess.MarkUsed(h.CaseID)
		}
	}

	resp := &QueryResponse{
		SessionID: sess.ID,
		Round:     round,
		Retrieval: retrieval,
		Dialog:    prompt.BuildDialog(retrieval.Chain),
	}

	out, err := s.llm.Generate(ctx, prompt.BuildIntegrated(fresh, req.Question), llm.DefaultOptions())
	if err != nil {
		s.logger.Error("整合診斷失敗", "session_id", sess.ID, "error", err)
		resp.Error = "LLM 推理失敗: " + err.Error()
		return resp
	}
	resp.LLMOutput = out

	diagnosis := llm.ExtractDiagnosis(out)
	if diagnosis.Rationale == "" {
		diagnosis.Rationale = out
	}
	resp.LLMStruct = diagnosis.Map()
	sess.CurrentResult = resp.LLMStruct
	return resp
}

// Sessions 返回所有活跃会话概要
func (s *Service) Sessions() []map[string]any {
	return s.sessions.Infos()
}

// ResetSession 重置指定会话；sessionID 为空时重置全部，返回删除数量
func (s *Service) ResetSession(sessionID string) int {
	if sessionID == "" {
		return s.sessions.ResetAll()
	}
	if s.sessions.Reset(sessionID) {
		return 1
	}
	return 0
}

// Results 列出所有诊断摘要档
func (s *Service) Results() ([]string, error) {
	return s.store.ListResults()
}

// EnsureCollections 启动时确保向量集合存在，维度取自 embedding 模型
func (s *Service) EnsureCollections(ctx context.Context) error {
	dimension := 1024
	if s.embedder != nil {
		dimension = s.embedder.Dimension()
	}
	return vector.EnsureCollections(ctx, s.vectors, dimension)
}
