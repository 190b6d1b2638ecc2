package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"go.uber.org/zap"
)

// Cache persists the final ordered step list per video identity as one JSON
// snapshot per id. Writes overwrite; a corrupt or half-written entry reads as
// absent rather than failing the request.
type Cache struct {
	root   string
	logger *zap.Logger
}

func New(root string, logger *zap.Logger) *Cache {
	return &Cache{root: root, logger: logger}
}

// Identity extracts the platform video id from known YouTube URL shapes,
// falling back to a deterministic short hash of the URL.
func (c *Cache) Identity(videoURL string) string {
	if id := extractVideoID(videoURL); id != "" {
		return id
	}
	sum := md5.Sum([]byte(videoURL))
	return hex.EncodeToString(sum[:])[:12]
}

func extractVideoID(videoURL string) string {
	parsed, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	switch host {
	case "youtube.com", "m.youtube.com":
		if id := parsed.Query().Get("v"); id != "" {
			return id
		}
		if rest, ok := strings.CutPrefix(parsed.Path, "/shorts/"); ok {
			return strings.SplitN(rest, "/", 2)[0]
		}
	case "youtu.be":
		if id := strings.Trim(parsed.Path, "/"); id != "" {
			return strings.SplitN(id, "/", 2)[0]
		}
	}
	return ""
}

func (c *Cache) entryPath(videoID string) string {
	return filepath.Join(c.root, videoID+".json")
}

func (c *Cache) Get(videoID string) ([]entity.Step, bool) {
	data, err := os.ReadFile(c.entryPath(videoID))
	if err != nil {
		return nil, false
	}
	var steps []entity.Step
	if err := json.Unmarshal(data, &steps); err != nil {
		c.logger.Warn("corrupt cache entry, treating as absent",
			zap.String("video_id", videoID),
			zap.Error(err),
		)
		return nil, false
	}
	return steps, true
}

func (c *Cache) Put(videoID string, steps []entity.Step) error {
	if err := os.MkdirAll(c.root, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(steps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := os.WriteFile(c.entryPath(videoID), data, 0644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (c *Cache) Exists(videoID string) bool {
	_, err := os.Stat(c.entryPath(videoID))
	return err == nil
}

func (c *Cache) Clear(videoID string) error {
	err := os.Remove(c.entryPath(videoID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache entry: %w", err)
	}
	return nil
}

func (c *Cache) ClearAll() error {
	entries, err := filepath.Glob(filepath.Join(c.root, "*.json"))
	if err != nil {
		return fmt.Errorf("glob cache entries: %w", err)
	}
	for _, entry := range entries {
		if err := os.Remove(entry); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", entry, err)
		}
	}
	return nil
}
