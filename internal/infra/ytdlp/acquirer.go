package ytdlp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

const preferredFormat = "bestvideo[height>=1080]+bestaudio/best[height>=1080]/bestvideo+bestaudio/best"

// Acquirer downloads videos through the yt-dlp binary, preferring 1080p+
// streams merged into mp4 and falling back to the plain best format when the
// preferred selection fails.
type Acquirer struct {
	binary string
	logger *zap.Logger
}

func NewAcquirer(logger *zap.Logger) *Acquirer {
	return &Acquirer{binary: "yt-dlp", logger: logger}
}

func (a *Acquirer) Fetch(ctx context.Context, url string, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	if path, err := a.download(ctx, url, destDir, preferredFormat); err == nil {
		return path, nil
	} else {
		a.logger.Warn("preferred format download failed, retrying with best",
			zap.String("url", url),
			zap.Error(err),
		)
	}

	path, err := a.download(ctx, url, destDir, "best")
	if err != nil {
		return "", fmt.Errorf("yt-dlp download: %w", err)
	}
	return path, nil
}

func (a *Acquirer) download(ctx context.Context, url, destDir, format string) (string, error) {
	cmd := exec.CommandContext(ctx, a.binary,
		"--format", format,
		"--merge-output-format", "mp4",
		"--force-ipv4",
		"--no-warnings",
		"--write-info-json",
		"--output", filepath.Join(destDir, "%(id)s.%(ext)s"),
		url,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp error: %w, output: %s", err, string(output))
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "*.mp4"))
	if err != nil {
		return "", fmt.Errorf("glob downloads: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no mp4 produced in %s", destDir)
	}

	a.logger.Info("video downloaded", zap.String("path", matches[0]))
	return matches[0], nil
}
