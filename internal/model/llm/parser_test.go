package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleResponse = `根據病例分析如下：

主病：
- 心脾兩虛（0.8）
- 肝鬱氣滯（0.5）

次病：
- 腎陰虛（0.3）

推理說明：患者長期失眠多夢，伴心悸健忘，舌淡脈細，
與檢索病例中心脾兩虛證高度相符。`

func TestExtractDiagnosis(t *testing.T) {
	d := ExtractDiagnosis(sampleResponse)
	assert.Equal(t, []PatternWeight{
		{Name: "心脾兩虛", Weight: 0.8},
		{Name: "肝鬱氣滯", Weight: 0.5},
	}, d.Primary)
	assert.Equal(t, []PatternWeight{{Name: "腎陰虛", Weight: 0.3}}, d.Secondary)
	assert.Contains(t, d.Rationale, "心脾兩虛證高度相符")
	assert.False(t, d.Empty())
}

func TestExtractDiagnosisHalfWidthParens(t *testing.T) {
	d := ExtractDiagnosis("主病：\n- 脾虛濕困(0.7)\n推理說明：略")
	assert.Equal(t, []PatternWeight{{Name: "脾虛濕困", Weight: 0.7}}, d.Primary)
	assert.Equal(t, "略", d.Rationale)
}

func TestExtractDiagnosisFreeText(t *testing.T) {
	d := ExtractDiagnosis("無法判斷，請補充更多資訊。")
	assert.True(t, d.Empty())
	assert.Empty(t, d.Rationale)
}

func TestDiagnosisMap(t *testing.T) {
	d := Diagnosis{
		Primary:   []PatternWeight{{Name: "心脾兩虛", Weight: 0.8}},
		Rationale: "說明",
	}
	m := d.Map()
	assert.Equal(t, []any{[]any{"心脾兩虛", 0.8}}, m["主病"])
	assert.Equal(t, []any{}, m["次病"])
	assert.Equal(t, "說明", m["推理說明"])
}

func TestExtractContent(t *testing.T) {
	out, err := extractContent([]byte(`{"choices":[{"message":{"content":"答案"}}]}`))
	assert.NoError(t, err)
	assert.Equal(t, "答案", out)

	out, err = extractContent([]byte(`{"choices":[{"text":"舊式答案"}]}`))
	assert.NoError(t, err)
	assert.Equal(t, "舊式答案", out)

	_, err = extractContent([]byte(`{"choices":[]}`))
	assert.Error(t, err)
}
