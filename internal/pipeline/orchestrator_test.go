package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDiscovery struct {
	video *entity.VideoDescriptor
	err   error
}

func (s *stubDiscovery) Find(ctx context.Context, query string) (*entity.VideoDescriptor, error) {
	return s.video, s.err
}

type stubAcquirer struct {
	path string
	err  error
}

func (s *stubAcquirer) Fetch(ctx context.Context, url, destDir string) (string, error) {
	return s.path, s.err
}

type stubReader struct {
	asset *entity.VideoAsset
	err   error
}

func (s *stubReader) Probe(ctx context.Context, path string) (*entity.VideoAsset, error) {
	if s.err != nil {
		return nil, s.err
	}
	asset := *s.asset
	asset.LocalPath = path
	return &asset, nil
}

func (s *stubReader) ExtractCandidates(ctx context.Context, path string, interval int, destDir string) ([]string, error) {
	return nil, errors.New("not used")
}

type stubSampler struct {
	frames []entity.Frame
	err    error
}

func (s *stubSampler) Sample(ctx context.Context, video *entity.VideoAsset, outputDir string) ([]entity.Frame, *entity.SamplingMetrics, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.frames, &entity.SamplingMetrics{FrameCount: len(s.frames), FramesExamined: len(s.frames)}, nil
}

type stubCropper struct{}

func (s *stubCropper) Crop(ctx context.Context, frames []entity.Frame, outputDir string) ([]entity.Frame, *entity.CroppingMetrics, error) {
	return frames, &entity.CroppingMetrics{Successful: len(frames)}, nil
}

type stubSynthesizer struct {
	steps          []entity.Step
	err            error
	reportProgress bool
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, frames []entity.Frame, query, outputDir string, progress port.ProgressFunc) ([]entity.Step, *entity.SynthesisMetrics, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if s.reportProgress && progress != nil {
		progress(len(frames), len(frames))
		// Let the orchestrator drain the progress event before the result
		// lands.
		time.Sleep(100 * time.Millisecond)
	}
	m := &entity.SynthesisMetrics{
		TotalSteps:       len(s.steps),
		ActionTypeCounts: map[string]int{"click": len(s.steps)},
	}
	return s.steps, m, nil
}

type memoryCache struct {
	entries map[string][]entity.Step
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]entity.Step)}
}

func (m *memoryCache) Identity(url string) string { return "vid-" + url[len(url)-1:] }

func (m *memoryCache) Get(videoID string) ([]entity.Step, bool) {
	steps, ok := m.entries[videoID]
	return steps, ok
}

func (m *memoryCache) Put(videoID string, steps []entity.Step) error {
	m.entries[videoID] = steps
	return nil
}

func (m *memoryCache) Exists(videoID string) bool { _, ok := m.entries[videoID]; return ok }
func (m *memoryCache) Clear(videoID string) error { delete(m.entries, videoID); return nil }
func (m *memoryCache) ClearAll() error            { m.entries = map[string][]entity.Step{}; return nil }

func newTestOrchestrator(t *testing.T, cache port.ResultCache, synth port.StepSynthesizer) *Orchestrator {
	t.Helper()
	return New(
		&stubDiscovery{video: &entity.VideoDescriptor{ID: "x", URL: "https://example.com/v", Title: "How to", DurationSeconds: 60}},
		&stubAcquirer{path: "video.mp4"},
		&stubReader{asset: &entity.VideoAsset{FPS: 30, TotalFrames: 1800}},
		&stubSampler{frames: []entity.Frame{{Index: 0}, {Index: 30}}},
		&stubCropper{},
		synth,
		cache,
		nil,
		zap.NewNop(),
		Config{OutputRoot: t.TempDir(), VideosDir: t.TempDir()},
	)
}

func collect(t *testing.T, ch <-chan entity.ProgressEvent) []entity.ProgressEvent {
	t.Helper()
	var events []entity.ProgressEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-timeout:
			t.Fatal("timeout draining progress events")
		}
	}
}

func stagesOf(events []entity.ProgressEvent) []entity.Stage {
	out := make([]entity.Stage, 0, len(events))
	for _, e := range events {
		out = append(out, e.Stage)
	}
	return out
}

func TestRunEmitsStagesInOrder(t *testing.T) {
	steps := []entity.Step{{StepNumber: 1, Action: "CLICK [[1,2]]", ActionType: entity.ActionClick}}
	o := newTestOrchestrator(t, newMemoryCache(), &stubSynthesizer{steps: steps})

	events := collect(t, o.Run(context.Background(), "fix wifi"))

	assert.Equal(t, []entity.Stage{
		entity.StageConnected,
		entity.StageDiscovery, entity.StageDiscovery,
		entity.StageCacheLookup, entity.StageCacheLookup,
		entity.StageAcquisition, entity.StageAcquisition,
		entity.StageSampling, entity.StageSampling,
		entity.StageCropping, entity.StageCropping,
		entity.StageSynthesis, entity.StageSynthesis,
		entity.StageCacheWrite, entity.StageCacheWrite,
		entity.StageComplete,
	}, stagesOf(events))

	last := events[len(events)-1]
	assert.True(t, last.Terminal())
	assert.Equal(t, entity.StatusCompleted, last.Status)

	result, ok := last.Payload["result"].(*entity.PipelineResult)
	require.True(t, ok)
	assert.Equal(t, "vid-v", result.VideoID)
	assert.Equal(t, "fix wifi", result.Query)
	assert.Len(t, result.Steps, 1)
	assert.False(t, result.Cached)
	assert.Contains(t, result.Timing, "discovery")
	assert.Contains(t, result.Timing, "synthesis")
}

func TestRunCacheHitShortCircuits(t *testing.T) {
	cache := newMemoryCache()
	cached := []entity.Step{{StepNumber: 1, Thought: "from cache"}}
	require.NoError(t, cache.Put("vid-v", cached))

	o := newTestOrchestrator(t, cache, &stubSynthesizer{err: errors.New("must not be called")})

	events := collect(t, o.Run(context.Background(), "fix wifi"))

	// Downstream stages report synthetic completions so progress consumers
	// still see the full sequence.
	stages := stagesOf(events)
	assert.Contains(t, stages, entity.StageAcquisition)
	assert.Contains(t, stages, entity.StageSynthesis)
	for _, e := range events[1:] {
		assert.NotEqual(t, entity.StatusError, e.Status)
	}

	last := events[len(events)-1]
	assert.Equal(t, entity.StageComplete, last.Stage)
	result, ok := last.Payload["result"].(*entity.PipelineResult)
	require.True(t, ok)
	assert.True(t, result.Cached)
	assert.Equal(t, "from cache", result.Steps[0].Thought)
}

func TestRunStageFailureEndsStream(t *testing.T) {
	o := newTestOrchestrator(t, newMemoryCache(), &stubSynthesizer{err: errors.New("model exploded")})

	events := collect(t, o.Run(context.Background(), "fix wifi"))

	last := events[len(events)-1]
	assert.Equal(t, entity.StageError, last.Stage)
	assert.Equal(t, entity.StatusError, last.Status)
	assert.Contains(t, last.Message, "model exploded")

	// The stage itself reported the error before the terminal event.
	prev := events[len(events)-2]
	assert.Equal(t, entity.StageSynthesis, prev.Stage)
	assert.Equal(t, entity.StatusError, prev.Status)
}

func TestRunDiscoveryFailure(t *testing.T) {
	o := New(
		&stubDiscovery{err: entity.ErrNoVideoFound},
		&stubAcquirer{}, &stubReader{asset: &entity.VideoAsset{}}, &stubSampler{}, &stubCropper{}, &stubSynthesizer{},
		newMemoryCache(), nil, zap.NewNop(),
		Config{OutputRoot: t.TempDir(), VideosDir: t.TempDir()},
	)

	events := collect(t, o.Run(context.Background(), "no such tutorial"))
	last := events[len(events)-1]
	assert.Equal(t, entity.StageError, last.Stage)
}

func TestRunSync(t *testing.T) {
	steps := []entity.Step{{StepNumber: 1}}
	o := newTestOrchestrator(t, newMemoryCache(), &stubSynthesizer{steps: steps})

	result, err := o.RunSync(context.Background(), "fix wifi")
	require.NoError(t, err)
	assert.Len(t, result.Steps, 1)

	failing := newTestOrchestrator(t, newMemoryCache(), &stubSynthesizer{err: errors.New("model exploded")})
	_, err = failing.RunSync(context.Background(), "fix wifi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")
}

func TestRunForwardsSynthesisProgress(t *testing.T) {
	steps := []entity.Step{{StepNumber: 1}}
	o := newTestOrchestrator(t, newMemoryCache(), &stubSynthesizer{steps: steps, reportProgress: true})

	events := collect(t, o.Run(context.Background(), "fix wifi"))

	var found bool
	for _, e := range events {
		if e.Stage == entity.StageSynthesis && e.Status == entity.StatusActive && e.Payload != nil {
			assert.Equal(t, 2, e.Payload["processed"])
			assert.Equal(t, 2, e.Payload["total"])
			found = true
		}
	}
	assert.True(t, found, "per-frame progress events reach the stream")
}
