package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	entries map[string][]entity.Step
}

func (f *fakeCache) Identity(url string) string { return url }

func (f *fakeCache) Get(videoID string) ([]entity.Step, bool) {
	steps, ok := f.entries[videoID]
	return steps, ok
}

func (f *fakeCache) Put(videoID string, steps []entity.Step) error {
	f.entries[videoID] = steps
	return nil
}

func (f *fakeCache) Exists(videoID string) bool { _, ok := f.entries[videoID]; return ok }
func (f *fakeCache) Clear(videoID string) error { delete(f.entries, videoID); return nil }
func (f *fakeCache) ClearAll() error            { f.entries = map[string][]entity.Step{}; return nil }

type fakeMetrics struct {
	records map[string]*entity.RunMetrics
	findErr error
}

func (f *fakeMetrics) Merge(ctx context.Context, videoID string, metrics entity.RunMetrics) error {
	return nil
}

func (f *fakeMetrics) Find(ctx context.Context, videoID string) (*entity.RunMetrics, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.records[videoID], nil
}

func newTestMux(cache *fakeCache, metrics *fakeMetrics, outputRoot string) http.Handler {
	if metrics == nil {
		metrics = &fakeMetrics{}
	}
	s := NewServer(cache, metrics, outputRoot, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cache/{videoID}", s.handleCacheGet)
	mux.HandleFunc("DELETE /cache/{videoID}", s.handleCacheClear)
	mux.HandleFunc("DELETE /cache", s.handleCacheClearAll)
	mux.HandleFunc("GET /videos/{videoID}/metrics", s.handleVideoMetrics)
	mux.HandleFunc("GET /videos/{videoID}/steps/{stepNumber}/{file}", s.handleStepImage)
	return mux
}

func TestCacheGetEndpoint(t *testing.T) {
	cache := &fakeCache{entries: map[string][]entity.Step{
		"vid1": {{StepNumber: 1, Thought: "Tap Settings."}},
	}}
	mux := newTestMux(cache, nil, t.TempDir())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/vid1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		VideoID string        `json:"video_id"`
		Steps   []entity.Step `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "vid1", body.VideoID)
	require.Len(t, body.Steps, 1)
	assert.Equal(t, "Tap Settings.", body.Steps[0].Thought)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCacheClearEndpoints(t *testing.T) {
	cache := &fakeCache{entries: map[string][]entity.Step{
		"a": {{StepNumber: 1}},
		"b": {{StepNumber: 1}},
	}}
	mux := newTestMux(cache, nil, t.TempDir())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cache/a", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, cache.Exists("a"))
	assert.True(t, cache.Exists("b"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cache", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, cache.Exists("b"))
}

func TestVideoMetricsEndpoint(t *testing.T) {
	metrics := &fakeMetrics{records: map[string]*entity.RunMetrics{
		"vid1": {
			VideoID:       "vid1",
			Query:         "change display settings",
			RunsCompleted: 2,
			Synthesis:     &entity.SynthesisMetrics{TotalSteps: 5},
		},
	}}
	mux := newTestMux(&fakeCache{entries: map[string][]entity.Step{}}, metrics, t.TempDir())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/vid1/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body entity.RunMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "vid1", body.VideoID)
	assert.Equal(t, 2, body.RunsCompleted)
	require.NotNil(t, body.Synthesis)
	assert.Equal(t, 5, body.Synthesis.TotalSteps)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/unknown/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVideoMetricsEndpointRepositoryError(t *testing.T) {
	metrics := &fakeMetrics{findErr: errors.New("connection refused")}
	mux := newTestMux(&fakeCache{entries: map[string][]entity.Step{}}, metrics, t.TempDir())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/vid1/metrics", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStepImageEndpoint(t *testing.T) {
	outputRoot := t.TempDir()
	stepDir := filepath.Join(outputRoot, "vid1", "steps", "step_01")
	require.NoError(t, os.MkdirAll(stepDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(stepDir, "annotated.jpg"), []byte("jpeg-bytes"), 0644))

	mux := newTestMux(&fakeCache{entries: map[string][]entity.Step{}}, nil, outputRoot)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/vid1/steps/1/annotated.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/vid1/steps/0/annotated.jpg", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

}

func TestStepImageRejectsTraversal(t *testing.T) {
	s := NewServer(&fakeCache{entries: map[string][]entity.Step{}}, &fakeMetrics{}, t.TempDir(), zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("videoID", "..")
	req.SetPathValue("stepNumber", "1")
	req.SetPathValue("file", "annotated.jpg")
	s.handleStepImage(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.True(t, validName("vid1"))
	assert.False(t, validName("../etc"))
	assert.False(t, validName("a/b"))
	assert.False(t, validName(""))
}
