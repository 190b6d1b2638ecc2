package sampling

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/port"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const calibrationSampleLimit = 25

// Sampler selects a de-duplicated set of representative frames. It calibrates
// an SSIM threshold on a subsample of candidates, then either keeps frames
// whose similarity to the last kept frame stays at or below the threshold
// (similarity mode) or keeps frames on a fixed time spacing when the video is
// near-static (time-based mode).
type Sampler struct {
	reader port.VideoReader
	logger *zap.Logger
}

func New(reader port.VideoReader, logger *zap.Logger) *Sampler {
	return &Sampler{reader: reader, logger: logger}
}

// TargetFrameCount picks the sampling budget for a video duration in seconds.
func TargetFrameCount(duration float64) int {
	switch {
	case duration <= 30:
		return 15
	case duration <= 60:
		return 20
	case duration <= 90:
		return 25
	default:
		return 30
	}
}

// FrameInterval returns the candidate stride: every interval-th frame of the
// video becomes a sampling candidate.
func FrameInterval(totalFrames, targetFrames int) int {
	interval := totalFrames / targetFrames
	if interval < 1 {
		interval = 1
	}
	return interval
}

// samplingPlan is the calibrated decision for the full scan.
type samplingPlan struct {
	timeBased bool
	threshold float64
	interval  float64
	avgSSIM   float64
	minSSIM   float64
	maxSSIM   float64
}

// calibrate derives the scan plan from consecutive-pair SSIM over up to 25
// evenly spaced candidate frames.
func calibrate(scores []float64, duration float64, targetFrames int) samplingPlan {
	if len(scores) == 0 {
		return samplingPlan{threshold: 0.985}
	}

	var sum float64
	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores {
		sum += s
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}
	avg := sum / float64(len(scores))

	plan := samplingPlan{avgSSIM: avg, minSSIM: minScore, maxSSIM: maxScore}
	base := duration / float64(targetFrames)

	switch {
	case avg >= 0.98:
		plan.timeBased = true
		plan.interval = clamp(base, 0.5, 2.0)
	case avg >= 0.97:
		plan.timeBased = true
		plan.interval = clamp(base, 0.5, 2.5)
	case avg >= 0.93:
		plan.threshold = clamp(avg+0.03, 0.97, 0.982)
	default:
		plan.threshold = clamp(avg+0.02, 0.93, 0.985)
	}
	return plan
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (s *Sampler) Sample(ctx context.Context, video *entity.VideoAsset, outputDir string) ([]entity.Frame, *entity.SamplingMetrics, error) {
	if video.FPS <= 0 || video.TotalFrames == 0 {
		return nil, nil, fmt.Errorf("%w: zero frames or fps in %s", entity.ErrSamplingFailed, video.LocalPath)
	}

	duration := float64(video.TotalFrames) / video.FPS
	targetFrames := TargetFrameCount(duration)
	interval := FrameInterval(video.TotalFrames, targetFrames)

	candidatesDir := filepath.Join(outputDir, "candidates")
	defer os.RemoveAll(candidatesDir)

	candidates, err := s.reader.ExtractCandidates(ctx, video.LocalPath, interval, candidatesDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", entity.ErrSamplingFailed, err)
	}

	s.logger.Info("frame sampling started",
		zap.String("video_id", video.ID),
		zap.Float64("duration", duration),
		zap.Int("total_frames", video.TotalFrames),
		zap.Int("interval", interval),
		zap.Int("candidates", len(candidates)),
	)

	plan := s.calibrateFromCandidates(candidates, duration, targetFrames)
	if plan.timeBased {
		s.logger.Info("near-static video, switching to time-based sampling",
			zap.Float64("avg_ssim", plan.avgSSIM),
			zap.Float64("interval_seconds", plan.interval),
		)
	} else {
		s.logger.Info("adaptive similarity threshold calibrated",
			zap.Float64("avg_ssim", plan.avgSSIM),
			zap.Float64("min_ssim", plan.minSSIM),
			zap.Float64("max_ssim", plan.maxSSIM),
			zap.Float64("threshold", plan.threshold),
		)
	}

	framesDir := filepath.Join(outputDir, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create frames dir: %w", err)
	}

	var (
		frames         []entity.Frame
		lastKept       *image.Gray
		lastKeptTime   = -1.0
		examined       int
		duplicates     int
		filteredScores []float64
	)

	for i, candidatePath := range candidates {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		img, err := imaging.Open(candidatePath)
		if err != nil {
			s.logger.Warn("candidate frame unreadable, skipping", zap.String("path", candidatePath), zap.Error(err))
			continue
		}
		examined++

		frameNumber := i * interval
		timestamp := float64(frameNumber) / video.FPS

		keep := false
		if plan.timeBased {
			keep = lastKept == nil || timestamp-lastKeptTime >= plan.interval
			if !keep {
				duplicates++
			}
		} else if lastKept == nil {
			keep = true
		} else {
			gray := toGray(img)
			score := ssim(gray, lastKept)
			if score > plan.threshold {
				duplicates++
				filteredScores = append(filteredScores, score)
			} else {
				keep = true
			}
		}

		if !keep {
			continue
		}

		name := fmt.Sprintf("frame_%03d.jpg", len(frames))
		destPath := filepath.Join(framesDir, name)
		if err := copyFile(candidatePath, destPath); err != nil {
			return nil, nil, fmt.Errorf("persist frame: %w", err)
		}

		frames = append(frames, entity.Frame{
			Index:            frameNumber,
			TimestampSeconds: timestamp,
			Path:             destPath,
		})
		lastKept = toGray(img)
		lastKeptTime = timestamp
	}

	metrics := &entity.SamplingMetrics{
		FrameCount:              len(frames),
		FramesExamined:          examined,
		DuplicateFramesFiltered: duplicates,
		VideoDurationSeconds:    round2(duration),
	}
	if examined > 0 {
		metrics.DuplicateRatePercent = round2(float64(duplicates) / float64(examined) * 100)
	}
	if len(filteredScores) > 0 {
		var sum float64
		for _, sc := range filteredScores {
			sum += sc
		}
		metrics.AverageSimilarity = round3(sum / float64(len(filteredScores)))
	}
	if duration > 0 {
		metrics.FramesPerMinute = round2(float64(len(frames)) / duration * 60)
	}

	s.logger.Info("frame sampling completed",
		zap.Int("kept", len(frames)),
		zap.Int("examined", examined),
		zap.Int("duplicates_filtered", duplicates),
	)
	return frames, metrics, nil
}

// calibrateFromCandidates computes consecutive-pair SSIM over up to 25 evenly
// spaced candidate frames and derives the scan plan.
func (s *Sampler) calibrateFromCandidates(candidates []string, duration float64, targetFrames int) samplingPlan {
	step := 1
	if len(candidates) > calibrationSampleLimit {
		step = len(candidates) / calibrationSampleLimit
	}

	var scores []float64
	var prev *image.Gray
	taken := 0
	for i := 0; i < len(candidates) && taken < calibrationSampleLimit; i += step {
		img, err := imaging.Open(candidates[i])
		if err != nil {
			continue
		}
		gray := toGray(img)
		if prev != nil {
			scores = append(scores, ssim(gray, prev))
		}
		prev = gray
		taken++
	}
	return calibrate(scores, duration, targetFrames)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
