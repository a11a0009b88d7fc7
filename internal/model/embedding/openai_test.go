package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcm-cbr/internal/storage/cache"
)

func TestOpenAIEmbedderEmbed(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL, "test-model")
	vec, err := e.Embed(context.Background(), "失眠多夢", ModePassage)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "passage", gotBody["input_type"])
}

func TestOpenAIEmbedderDefaultsToQueryMode(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"embedding":[1,2]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("k", srv.URL, "m")
	vec, err := e.Embed(context.Background(), "text", "bogus")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, "query", gotBody["input_type"])
}

func TestOpenAIEmbedderEmptyText(t *testing.T) {
	e := NewOpenAIEmbedder("k", "http://localhost", "m")
	_, err := e.Embed(context.Background(), "", ModeQuery)
	assert.Error(t, err)
}

func TestExtractVectorShapes(t *testing.T) {
	cases := []string{
		`{"data":[{"embedding":[0.5]}]}`,
		`{"embedding":[0.5]}`,
		`{"vector":[0.5]}`,
	}
	for _, body := range cases {
		vec, err := extractVector([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, []float64{0.5}, vec, body)
	}
	_, err := extractVector([]byte(`{"oops":true}`))
	assert.Error(t, err)
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, _ string) ([]float64, error) {
	f.calls++
	return []float64{0.1, 0.2}, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

func TestCachedEmbedder(t *testing.T) {
	inner := &fakeEmbedder{}
	c := NewCachedEmbedder(inner, cache.NewMemoryStore(), time.Minute)
	ctx := context.Background()

	v1, err := c.Embed(ctx, "同樣的文本", ModeQuery)
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "同樣的文本", ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls, "命中緩存不應再調用底層")

	// 不同 mode 需分別緩存
	_, err = c.Embed(ctx, "同樣的文本", ModePassage)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
