package eval

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcm-cbr/internal/model/llm"
	"tcm-cbr/pkg/log"
)

type scoringLLM struct {
	scores map[string]string
}

func (s *scoringLLM) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	for key, score := range s.scores {
		if strings.Contains(prompt, key) {
			return score, nil
		}
	}
	return "0.0", nil
}

func (s *scoringLLM) Chat(ctx context.Context, _ []llm.Message, opts llm.GenerateOptions) (string, error) {
	return s.Generate(ctx, "", opts)
}

func (s *scoringLLM) Model() string    { return "fake" }
func (s *scoringLLM) Provider() string { return "fake" }
func (s *scoringLLM) SetModel(string)  {}
func (s *scoringLLM) SetAPIKey(string) {}

func newEvaluator(t *testing.T, client llm.Client) *Evaluator {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error", Format: "text"})
	require.NoError(t, err)
	return NewEvaluator(client, logger, 3)
}

const inputCSV = `Case,Expected,PredPattern,Error
1,失眠,不寐,
2,心脾兩虛,肝鬱氣滯,
3,腎陰虛,,
4,頭痛,頭痛,timeout
`

func TestEvaluatorRun(t *testing.T) {
	e := newEvaluator(t, &scoringLLM{scores: map[string]string{
		"不寐":   "1.0",
		"肝鬱氣滯": "0.2",
	}})

	var out bytes.Buffer
	result, err := e.Run(context.Background(), strings.NewReader(inputCSV), &out)
	require.NoError(t, err)

	assert.Equal(t, "LLM_Score", result.Header[len(result.Header)-1])
	require.Len(t, result.Rows, 4)
	// 順序與輸入一致
	assert.Equal(t, "1.00", result.Rows[0][4])
	assert.Equal(t, "0.20", result.Rows[1][4])
	// 空預測給 0 分
	assert.Equal(t, "0.00", result.Rows[2][4])
	// Error 行直接 0 分
	assert.Equal(t, "0.00", result.Rows[3][4])
	assert.InDelta(t, 0.3, result.Average, 0.001)

	records, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestEvaluatorMissingColumns(t *testing.T) {
	e := newEvaluator(t, &scoringLLM{})
	var out bytes.Buffer
	_, err := e.Run(context.Background(), strings.NewReader("A,B\n1,2\n"), &out)
	assert.Error(t, err)
}

type badScoreLLM struct{}

func (badScoreLLM) Generate(context.Context, string, llm.GenerateOptions) (string, error) {
	return "這不是數字", nil
}

func (b badScoreLLM) Chat(ctx context.Context, _ []llm.Message, o llm.GenerateOptions) (string, error) {
	return b.Generate(ctx, "", o)
}
func (badScoreLLM) Model() string    { return "fake" }
func (badScoreLLM) Provider() string { return "fake" }
func (badScoreLLM) SetModel(string)  {}
func (badScoreLLM) SetAPIKey(string) {}

func TestEvaluatorUnparseableScore(t *testing.T) {
	e := newEvaluator(t, badScoreLLM{})
	var out bytes.Buffer
	result, err := e.Run(context.Background(), strings.NewReader("Expected,PredPattern\n失眠,不寐\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Average)
}
