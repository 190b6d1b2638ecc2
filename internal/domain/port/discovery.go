package port

import (
	"context"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
)

// VideoDiscovery resolves a free-text query to the best-matching tutorial
// video. Returns entity.ErrNoVideoFound when no candidate qualifies.
type VideoDiscovery interface {
	Find(ctx context.Context, query string) (*entity.VideoDescriptor, error)
}
