package face

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// fakeEngine records the detector modes it was called with.
type fakeEngine struct {
	calls   []DetectorMode
	results map[DetectorMode][]Detection
	err     error
}

func (f *fakeEngine) Detect(_ context.Context, _ []byte, mode DetectorMode) ([]Detection, error) {
	f.calls = append(f.calls, mode)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[mode], nil
}

func TestDetectWithFallback_FastHit(t *testing.T) {
	engine := &fakeEngine{results: map[DetectorMode][]Detection{
		DetectorFast: {{Embedding: vec(0.1)}},
	}}

	dets, err := DetectWithFallback(context.Background(), engine, []byte("img"))
	require.NoError(t, err)
	assert.Len(t, dets, 1)
	assert.Equal(t, []DetectorMode{DetectorFast}, engine.calls)
}

func TestDetectWithFallback_RetriesAccurateOnZero(t *testing.T) {
	engine := &fakeEngine{results: map[DetectorMode][]Detection{
		DetectorFast:     {},
		DetectorAccurate: {{Embedding: vec(0.1)}},
	}}

	dets, err := DetectWithFallback(context.Background(), engine, []byte("img"))
	require.NoError(t, err)
	assert.Len(t, dets, 1)
	assert.Equal(t, []DetectorMode{DetectorFast, DetectorAccurate}, engine.calls)
}

func TestDetectWithFallback_ZeroEverywhere(t *testing.T) {
	engine := &fakeEngine{results: map[DetectorMode][]Detection{}}

	dets, err := DetectWithFallback(context.Background(), engine, []byte("img"))
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func newTestEngine(t *testing.T, handler http.HandlerFunc) *HTTPEngine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultHTTPEngineConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 2 * time.Second
	cfg.RetryCount = 0
	cfg.MaxFaces = 2
	return NewHTTPEngine(cfg)
}

func TestHTTPEngine_Detect(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		var req representRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, string(DetectorFast), req.Detector)

		emb := make([]float32, domain.EmbeddingDim)
		resp := map[string]any{
			"results": []map[string]any{
				{"embedding": emb, "facial_area": map[string]int{"x": 10, "y": 20, "w": 30, "h": 40}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	dets, err := engine.Detect(context.Background(), []byte("jpeg-bytes"), DetectorFast)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}, dets[0].Box)
	assert.Len(t, dets[0].Embedding, domain.EmbeddingDim)
}

func TestHTTPEngine_CapsAtMaxFaces(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		emb := make([]float32, domain.EmbeddingDim)
		results := make([]map[string]any, 5)
		for i := range results {
			results[i] = map[string]any{"embedding": emb, "facial_area": map[string]int{"x": i, "y": 0, "w": 10, "h": 10}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})

	dets, err := engine.Detect(context.Background(), []byte("img"), DetectorFast)
	require.NoError(t, err)
	assert.Len(t, dets, 2)
}

func TestHTTPEngine_DropsMalformedEmbeddings(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"results": []map[string]any{
				{"embedding": make([]float32, 64), "facial_area": map[string]int{"x": 0, "y": 0, "w": 1, "h": 1}},
				{"embedding": make([]float32, domain.EmbeddingDim), "facial_area": map[string]int{"x": 0, "y": 0, "w": 1, "h": 1}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	dets, err := engine.Detect(context.Background(), []byte("img"), DetectorAccurate)
	require.NoError(t, err)
	assert.Len(t, dets, 1)
}

func TestHTTPEngine_NoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultHTTPEngineConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryCount = 3
	engine := NewHTTPEngine(cfg)

	_, err := engine.Detect(context.Background(), []byte("img"), DetectorFast)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, time.Second, calculateBackoff(0))
	assert.Equal(t, time.Second, calculateBackoff(1))
	assert.Equal(t, 2*time.Second, calculateBackoff(2))
	assert.Equal(t, 4*time.Second, calculateBackoff(3))
	assert.Equal(t, 32*time.Second, calculateBackoff(100))
}
