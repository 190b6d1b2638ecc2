package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"go.uber.org/zap"
)

// Reader decodes video metadata and candidate frames through the ffmpeg and
// ffprobe binaries.
type Reader struct {
	format string
	logger *zap.Logger
}

func NewReader(format string, logger *zap.Logger) *Reader {
	return &Reader{format: format, logger: logger}
}

func (r *Reader) Probe(ctx context.Context, path string) (*entity.VideoAsset, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate,nb_frames:format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var fps, duration float64
	var totalFrames int
	for _, line := range strings.Split(string(output), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || value == "" || value == "N/A" {
			continue
		}
		switch key {
		case "r_frame_rate":
			fps = parseRate(value)
		case "nb_frames":
			totalFrames, _ = strconv.Atoi(value)
		case "duration":
			duration, _ = strconv.ParseFloat(value, 64)
		}
	}

	// Some containers omit nb_frames; derive it from the duration.
	if totalFrames == 0 && fps > 0 {
		totalFrames = int(duration * fps)
	}
	if duration == 0 && fps > 0 {
		duration = float64(totalFrames) / fps
	}

	return &entity.VideoAsset{
		LocalPath:       path,
		DurationSeconds: duration,
		FPS:             fps,
		TotalFrames:     totalFrames,
	}, nil
}

// parseRate parses an ffprobe rational like "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func (r *Reader) ExtractCandidates(ctx context.Context, path string, interval int, destDir string) ([]string, error) {
	if interval < 1 {
		interval = 1
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create candidates dir: %w", err)
	}

	pattern := filepath.Join(destDir, fmt.Sprintf("cand_%%05d.%s", r.format))
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-vf", fmt.Sprintf("select='not(mod(n\\,%d))'", interval),
		"-vsync", "vfr",
		"-q:v", "2",
		"-y",
		pattern,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	glob := filepath.Join(destDir, fmt.Sprintf("cand_*.%s", r.format))
	candidates, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("glob candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no frames decoded from video")
	}
	sort.Strings(candidates)

	r.logger.Debug("candidate frames decoded",
		zap.Int("count", len(candidates)),
		zap.Int("interval", interval),
	)
	return candidates, nil
}
