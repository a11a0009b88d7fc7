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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	svc "tcm-cbr/internal/app"
	"tcm-cbr/internal/cases"
	"tcm-cbr/internal/model/llm"
	"tcm-cbr/internal/storage/cache"
	"tcm-cbr/internal/storage/vector"
	"tcm-cbr/pkg/config"
	"tcm-cbr/pkg/log"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string, _ string) ([]float64, error) {
	return []float64{0.5, 0.5, 0}, nil
}
func (fakeEmbedder) Dimension() int { return 3 }

type fakeLLM struct{}

func (fakeLLM) Generate(_ context.Context, _ string, _ llm.GenerateOptions) (string, error) {
	return "主病：\n- 心脾兩虛（0.8）\n推理說明：依摘要判斷", nil
}
func (f fakeLLM) Chat(ctx context.Context, _ []llm.Message, o llm.GenerateOptions) (string, error) {
	return f.Generate(ctx, "", o)
}
func (fakeLLM) Model() string    { return "fake" }
func (fakeLLM) Provider() string { return "fake" }
func (fakeLLM) SetModel(string)  {}
func (fakeLLM) SetAPIKey(string) {}

func setupServer(t *testing.T) *server.Hertz {
	t.Helper()
	dir := t.TempDir()
	caseStore, err := cases.NewStore(filepath.Join(dir, "data"), filepath.Join(dir, "result"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	logger, err := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	vectors := vector.NewMemoryStore()
	if err := vector.EnsureCollections(context.Background(), vectors, 3); err != nil {
		t.Fatalf("EnsureCollections: %v", err)
	}

	b := &svc.Bootstrap{
		Config:      &config.Config{},
		Logger:      logger,
		VectorStore: vectors,
		CacheStore:  cache.NewMemoryStore(),
		CaseStore:   caseStore,
	}
	service := svc.NewServiceWith(b, fakeLLM{}, fakeEmbedder{})

	h := server.Default(server.WithHostPorts(":0"))
	router := NewRouter(NewHandler(service, logger))
	router.Register(h)
	return h
}

func performJSON(t *testing.T, h *server.Hertz, method, path string, body any) ([]byte, int) {
	t.Helper()
	var buf []byte
	if body != nil {
		var err error
		buf, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	w := ut.PerformRequest(h.Engine, method, path,
		&ut.Body{Body: bytes.NewReader(buf), Len: len(buf)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	return resp.Body(), resp.StatusCode()
}

func TestHealthCheck(t *testing.T) {
	h := setupServer(t)
	body, status := performJSON(t, h, "GET", "/healthz", nil)
	if status != 200 {
		t.Fatalf("status: %d", status)
	}
	if !bytes.Contains(body, []byte("ok")) {
		t.Errorf("body: %s", body)
	}
}

func TestSaveCaseEndpoint(t *testing.T) {
	h := setupServer(t)
	body, status := performJSON(t, h, "POST", "/api/case/save", map[string]any{
		"basic":           map[string]any{"id": "P001", "gender": "female"},
		"chief_complaint": "失眠多夢",
	})
	if status != 200 {
		t.Fatalf("status %d: %s", status, body)
	}
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result["ok"] != true {
		t.Errorf("保存應成功: %s", body)
	}
	if result["file"] == "" {
		t.Errorf("應返回病歷檔名")
	}
}

func TestSaveCaseBadJSON(t *testing.T) {
	h := setupServer(t)
	w := ut.PerformRequest(h.Engine, "POST", "/api/case/save",
		&ut.Body{Body: bytes.NewReader([]byte("not json")), Len: 8})
	if w.Result().StatusCode() != 400 {
		t.Errorf("非法 JSON 應返回 400, got %d", w.Result().StatusCode())
	}
}

func TestQueryEndpoint(t *testing.T) {
	h := setupServer(t)

	// 先保存一笔病历，使检索有结果
	_, status := performJSON(t, h, "POST", "/api/case/save", map[string]any{
		"basic":           map[string]any{"id": "P001"},
		"chief_complaint": "失眠多夢",
	})
	if status != 200 {
		t.Fatalf("save status: %d", status)
	}

	body, status := performJSON(t, h, "POST", "/api/query", map[string]any{
		"query": "長期失眠，心悸健忘",
	})
	if status != 200 {
		t.Fatalf("query status %d: %s", status, body)
	}
	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["session_id"] == "" {
		t.Errorf("應返回 session_id")
	}
	if resp["round"] != float64(1) {
		t.Errorf("首輪 round 應為 1: %v", resp["round"])
	}
	if !bytes.Contains(body, []byte("心脾兩虛")) {
		t.Errorf("應包含 LLM 診斷: %s", body)
	}
}

func TestQueryMissingParam(t *testing.T) {
	h := setupServer(t)
	_, status := performJSON(t, h, "POST", "/api/query", map[string]any{})
	if status != 400 {
		t.Errorf("缺 query 應返回 400, got %d", status)
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := setupServer(t)
	_, _ = performJSON(t, h, "POST", "/api/query", map[string]any{
		"query": "失眠", "session_id": "sid-1",
	})

	body, status := performJSON(t, h, "GET", "/api/sessions", nil)
	if status != 200 || !bytes.Contains(body, []byte("sid-1")) {
		t.Fatalf("sessions: %d %s", status, body)
	}

	body, status = performJSON(t, h, "POST", "/api/session/reset", map[string]any{
		"session_id": "sid-1",
	})
	if status != 200 || !bytes.Contains(body, []byte(`"reset":1`)) {
		t.Errorf("reset: %d %s", status, body)
	}

	body, _ = performJSON(t, h, "GET", "/api/sessions", nil)
	if bytes.Contains(body, []byte("sid-1")) {
		t.Errorf("重置後會話應消失: %s", body)
	}
}

func TestResultsEndpoint(t *testing.T) {
	h := setupServer(t)
	body, status := performJSON(t, h, "GET", "/api/results", nil)
	if status != 200 {
		t.Fatalf("results status: %d", status)
	}
	if !bytes.Contains(body, []byte(`"count":0`)) {
		t.Errorf("初始結果清單應為空: %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupServer(t)
	body, status := performJSON(t, h, "GET", "/metrics", nil)
	if status != 200 {
		t.Fatalf("metrics status: %d", status)
	}
	if !bytes.Contains(body, []byte("tcmcbr_")) {
		t.Errorf("指標前綴缺失: %.200s", body)
	}
}

func TestPatientInfoEndpoint(t *testing.T) {
	h := setupServer(t)
	body, status := performJSON(t, h, "POST", "/api/case/save", map[string]any{
		"basic":           map[string]any{"id": "P009"},
		"chief_complaint": "頭痛",
	})
	if status != 200 {
		t.Fatal("save failed")
	}
	var saved map[string]any
	if err := json.Unmarshal(body, &saved); err != nil {
		t.Fatalf("unmarshal save: %v", err)
	}
	caseID, _ := saved["file"].(string)
	if caseID == "" {
		t.Fatalf("保存應返回病歷檔名: %s", body)
	}

	body, status = performJSON(t, h, "POST", "/api/patient/info", map[string]any{"id": caseID})
	if status != 200 {
		t.Fatalf("patient info status: %d", status)
	}
	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["found"] != true || resp["count"] != float64(1) {
		t.Errorf("已保存個案應可查得: %s", body)
	}

	body, status = performJSON(t, h, "POST", "/api/patient/info", map[string]any{"id": "nobody"})
	if status != 200 || !bytes.Contains(body, []byte(`"found":false`)) {
		t.Errorf("查無個案應返回 found=false: %d %s", status, body)
	}

	_, status = performJSON(t, h, "POST", "/api/patient/info", map[string]any{})
	if status != 400 {
		t.Errorf("缺 id 應返回 400, got %d", status)
	}
}
