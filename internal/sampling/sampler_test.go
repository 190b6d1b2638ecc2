package sampling

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTargetFrameCount(t *testing.T) {
	assert.Equal(t, 15, TargetFrameCount(10))
	assert.Equal(t, 15, TargetFrameCount(30))
	assert.Equal(t, 20, TargetFrameCount(45))
	assert.Equal(t, 20, TargetFrameCount(60))
	assert.Equal(t, 25, TargetFrameCount(75))
	assert.Equal(t, 25, TargetFrameCount(90))
	assert.Equal(t, 30, TargetFrameCount(120))
}

func TestFrameInterval(t *testing.T) {
	assert.Equal(t, 60, FrameInterval(900, 15))
	assert.Equal(t, 1, FrameInterval(10, 15), "short videos examine every frame")
	assert.Equal(t, 1, FrameInterval(15, 15))
}

func TestCalibrateNearStatic(t *testing.T) {
	scores := repeat(0.995, 24)
	plan := calibrate(scores, 60, 20)

	assert.True(t, plan.timeBased)
	assert.InDelta(t, 2.0, plan.interval, 1e-9, "60s/20 frames caps at the 2.0s clamp")
}

func TestCalibrateMostlyStatic(t *testing.T) {
	scores := repeat(0.975, 24)
	plan := calibrate(scores, 100, 30)

	assert.True(t, plan.timeBased)
	assert.InDelta(t, 2.5, plan.interval, 1e-9, "100s/30 frames caps at the 2.5s clamp")
}

func TestCalibrateModerateMotion(t *testing.T) {
	scores := repeat(0.95, 24)
	plan := calibrate(scores, 60, 20)

	assert.False(t, plan.timeBased)
	assert.InDelta(t, 0.98, plan.threshold, 1e-9, "avg+0.03 within the [0.97, 0.982] band")
}

func TestCalibrateHighMotion(t *testing.T) {
	scores := repeat(0.85, 24)
	plan := calibrate(scores, 60, 20)

	assert.False(t, plan.timeBased)
	assert.InDelta(t, 0.93, plan.threshold, 1e-9, "avg+0.02 floors at 0.93")
}

func TestCalibrateNoScores(t *testing.T) {
	plan := calibrate(nil, 60, 20)
	assert.False(t, plan.timeBased)
	assert.InDelta(t, 0.985, plan.threshold, 1e-9)
}

func TestSSIMIdenticalImages(t *testing.T) {
	img := toGray(solidImage(64, 64, color.NRGBA{R: 120, G: 130, B: 140, A: 255}))
	assert.InDelta(t, 1.0, ssim(img, img), 1e-6)
}

func TestSSIMDistinctImages(t *testing.T) {
	a := toGray(solidImage(64, 64, color.NRGBA{R: 20, G: 20, B: 20, A: 255}))
	b := toGray(checkerImage(64, 64))

	score := ssim(a, b)
	assert.Less(t, score, 0.9)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestSSIMResizesMismatchedShapes(t *testing.T) {
	a := toGray(solidImage(64, 64, color.NRGBA{R: 120, G: 120, B: 120, A: 255}))
	b := toGray(solidImage(32, 48, color.NRGBA{R: 120, G: 120, B: 120, A: 255}))

	assert.InDelta(t, 1.0, ssim(a, b), 1e-3)
}

// fakeReader serves pre-rendered candidate images instead of invoking ffmpeg.
type fakeReader struct {
	candidates []image.Image
}

func (f *fakeReader) Probe(ctx context.Context, path string) (*entity.VideoAsset, error) {
	return &entity.VideoAsset{LocalPath: path, FPS: 30, TotalFrames: len(f.candidates) * 30}, nil
}

func (f *fakeReader) ExtractCandidates(ctx context.Context, path string, interval int, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(f.candidates))
	for i, img := range f.candidates {
		p := filepath.Join(destDir, fmt.Sprintf("cand_%05d.jpg", i))
		if err := imaging.Save(img, p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func TestSampleFiltersDuplicates(t *testing.T) {
	// Three bursts of near-identical frames; only the first of each burst
	// should survive similarity filtering.
	var candidates []image.Image
	for _, c := range []color.NRGBA{
		{R: 10, G: 10, B: 10, A: 255},
		{R: 240, G: 240, B: 240, A: 255},
		{R: 10, G: 240, B: 10, A: 255},
	} {
		for range 4 {
			candidates = append(candidates, solidImage(320, 240, c))
		}
	}

	reader := &fakeReader{candidates: candidates}
	sampler := New(reader, zap.NewNop())

	outputDir := t.TempDir()
	asset := &entity.VideoAsset{
		LocalPath:   "test.mp4",
		FPS:         1,
		TotalFrames: len(candidates),
	}

	frames, metrics, err := sampler.Sample(context.Background(), asset, outputDir)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	assert.Equal(t, 3, len(frames), "one frame per distinct burst")
	assert.Equal(t, len(frames), metrics.FrameCount)
	assert.Equal(t, len(candidates), metrics.FramesExamined)
	assert.Equal(t, len(candidates)-3, metrics.DuplicateFramesFiltered)

	for i, frame := range frames {
		assert.FileExists(t, frame.Path)
		assert.Equal(t, fmt.Sprintf("frame_%03d.jpg", i), filepath.Base(frame.Path))
	}

	// Candidate scratch space is cleaned up after the pass.
	assert.NoDirExists(t, filepath.Join(outputDir, "candidates"))
}

func TestSampleRejectsInvalidAsset(t *testing.T) {
	sampler := New(&fakeReader{}, zap.NewNop())

	_, _, err := sampler.Sample(context.Background(), &entity.VideoAsset{FPS: 0, TotalFrames: 100}, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrSamplingFailed)

	_, _, err = sampler.Sample(context.Background(), &entity.VideoAsset{FPS: 30, TotalFrames: 0}, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrSamplingFailed)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func solidImage(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func checkerImage(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/8+y/8)%2 == 0 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}
	return img
}
