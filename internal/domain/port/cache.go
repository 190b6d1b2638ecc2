package port

import "github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"

// ResultCache persists the final ordered step list per video identity.
// A corrupt or unreadable entry behaves as absent, never as an error.
type ResultCache interface {
	// Identity derives the stable cache key for a video URL: the platform
	// video id for known URL shapes, else a deterministic short hash.
	Identity(url string) string

	Get(videoID string) ([]entity.Step, bool)
	Put(videoID string, steps []entity.Step) error
	Exists(videoID string) bool
	Clear(videoID string) error
	ClearAll() error
}
