package port

import (
	"context"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
)

// VideoReader decodes container metadata and candidate frames from a local
// video file.
type VideoReader interface {
	// Probe returns duration, fps and total frame count for the file.
	Probe(ctx context.Context, path string) (*entity.VideoAsset, error)

	// ExtractCandidates decodes every interval-th frame into numbered JPEG
	// files under destDir and returns their paths in frame order.
	ExtractCandidates(ctx context.Context, path string, interval int, destDir string) ([]string, error)
}

// FrameSampler selects a small, de-duplicated set of representative frames
// from a raw video and persists them under outputDir.
type FrameSampler interface {
	Sample(ctx context.Context, video *entity.VideoAsset, outputDir string) ([]entity.Frame, *entity.SamplingMetrics, error)
}

// ScreenCropper isolates the device-screen region within each sampled frame
// and writes the cropped images under outputDir.
type ScreenCropper interface {
	Crop(ctx context.Context, frames []entity.Frame, outputDir string) ([]entity.Frame, *entity.CroppingMetrics, error)
}

// ProgressFunc reports synthesis progress as frames are consumed.
type ProgressFunc func(processed, total int)

// StepSynthesizer drives the inference collaborator frame by frame and emits
// validated, deduplicated, coordinate-annotated steps.
type StepSynthesizer interface {
	Synthesize(ctx context.Context, frames []entity.Frame, query string, outputDir string, progress ProgressFunc) ([]entity.Step, *entity.SynthesisMetrics, error)
}
