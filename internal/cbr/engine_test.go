package cbr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcm-cbr/internal/storage/vector"
	"tcm-cbr/pkg/log"
)

// stubEmbedder 以固定向量表驱动检索，便于控制相似度
type stubEmbedder struct {
	vectors map[string][]float64
	fail    bool
}

func (s *stubEmbedder) Embed(_ context.Context, text string, _ string) ([]float64, error) {
	if s.fail {
		return nil, errors.New("embedding 服務不可用")
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

func (s *stubEmbedder) Dimension() int { return 3 }

type memLogger struct {
	logID string
	chain any
}

func (m *memLogger) SaveReasoningLog(logID string, chain any, _ any, _ map[string]any) error {
	m.logID = logID
	m.chain = chain
	return nil
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	require.NoError(t, err)
	return logger
}

func seedStore(t *testing.T) vector.Store {
	t.Helper()
	s := vector.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, vector.EnsureCollections(ctx, s, 3))

	require.NoError(t, s.Add(ctx, vector.CollectionCase, []*vector.Vector{
		{ID: "c1", Values: []float64{1, 0, 0}, Metadata: map[string]string{
			"case_id": "case-1", "summary": "[主訴] 失眠多夢",
			"llm_struct": `{"主病":[["心脾兩虛",0.8]]}`,
		}},
		{ID: "c2", Values: []float64{0, 1, 0}, Metadata: map[string]string{
			"case_id": "case-2", "summary": "[主訴] 頭痛",
			"llm_struct": `{"主病":[["肝陽上亢",0.6]]}`,
		}},
	}))
	require.NoError(t, s.Add(ctx, vector.CollectionPCD, []*vector.Vector{
		{ID: "p1", Values: []float64{1, 0, 0}, Metadata: map[string]string{
			"case_id": "P001", "summary": "[主訴] 失眠",
			"llm_struct": `{"主病":[["心脾兩虛",0.9]]}`,
		}},
	}))
	require.NoError(t, s.Add(ctx, vector.CollectionPulsePJ, []*vector.Vector{
		{ID: "pj1", Values: []float64{0.9, 0.1, 0}, Metadata: map[string]string{
			"neo4j_id": "n1", "name": "細脈", "description": "脈細如線",
			"main_disease": "氣血兩虛", "symptoms": `["乏力"]`, "knowledge_chain": "細脈主虛",
		}},
	}))
	return s
}

func TestAnonymousQuery(t *testing.T) {
	logs := &memLogger{}
	e := NewEngine(seedStore(t), &stubEmbedder{}, logs, testLogger(t), 5)

	r := e.AnonymousQuery(context.Background(), "失眠多夢", 5, "q-1")
	require.Len(t, r.Chain, 2)
	assert.Equal(t, "case查詢", r.Chain[0].Label)
	assert.Equal(t, "PulsePJ查詢", r.Chain[1].Label)

	// 主病權重排序：心脾兩虛 0.8 在前
	caseHits := r.Results["case"]
	require.NotEmpty(t, caseHits)
	assert.Equal(t, "case-1", caseHits[0].CaseID)

	// 脈象統一格式
	pulseHits := r.Results["PulsePJ"]
	require.Len(t, pulseHits, 1)
	assert.Equal(t, "n1", pulseHits[0].CaseID)

	// 聚合去重
	assert.Len(t, r.Results["all"], 3)
	assert.Equal(t, "推理流程", r.Tree.Label)
	assert.Equal(t, "q-1", logs.logID)
}

func TestAnonymousQueryEmbedFailureDegrades(t *testing.T) {
	e := NewEngine(seedStore(t), &stubEmbedder{fail: true}, nil, testLogger(t), 5)
	r := e.AnonymousQuery(context.Background(), "失眠", 5, "")
	assert.Empty(t, r.Chain, "嵌入失敗應降級為空推理鏈")
	assert.Empty(t, r.Results["case"])
	assert.Empty(t, r.Results["all"])
}

func TestPersonalQuery(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float64{
		"心脾兩虛": {1, 0, 0},
	}}
	e := NewEngine(seedStore(t), emb, nil, testLogger(t), 5)

	r := e.PersonalQuery(context.Background(), "P001", "", 5, "")
	require.Len(t, r.Chain, 3)
	assert.Equal(t, "PCD查詢", r.Chain[0].Label)
	assert.Equal(t, "P001", r.Chain[0].Input)
	// 主病關鍵字作為後續查詢輸入
	assert.Equal(t, "心脾兩虛", r.Chain[1].Input)

	require.NotEmpty(t, r.Results["PCD"])
	assert.Equal(t, "P001", r.Results["PCD"][0].CaseID)
	assert.NotEmpty(t, r.Results["case"])
}

func TestPersonalQueryUnknownPatient(t *testing.T) {
	e := NewEngine(seedStore(t), &stubEmbedder{}, nil, testLogger(t), 5)
	r := e.PersonalQuery(context.Background(), "nobody", "", 5, "")
	// 查無個案時只有 PCD 一步，不做後續查詢
	require.Len(t, r.Chain, 1)
	assert.Empty(t, r.Results["PCD"])
	assert.Empty(t, r.Results["case"])
}

func TestRoute(t *testing.T) {
	e := NewEngine(seedStore(t), &stubEmbedder{}, nil, testLogger(t), 5)
	ctx := context.Background()

	anon := e.Route(ctx, "", "失眠", 5, "")
	assert.Equal(t, "case查詢", anon.Chain[0].Label)

	personal := e.Route(ctx, "P001", "失眠", 5, "")
	assert.Equal(t, "PCD查詢", personal.Chain[0].Label)
}

func TestPulseMainDisease(t *testing.T) {
	e := NewEngine(seedStore(t), &stubEmbedder{}, nil, testLogger(t), 5)
	got := e.PulseMainDisease(context.Background(), "脈細乏力")
	assert.Equal(t, "氣血兩虛", got)
}
