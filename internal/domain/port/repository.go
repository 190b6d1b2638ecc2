package port

import (
	"context"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/google/uuid"
)

type RunRepository interface {
	Create(ctx context.Context, run *entity.ExtractionRun) error
	Update(ctx context.Context, run *entity.ExtractionRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionRun, error)
}

// MetricsRepository keeps one cumulative metrics record per video identity.
type MetricsRepository interface {
	// Merge folds the given metrics into the stored record for the video id,
	// creating the record if it does not exist.
	Merge(ctx context.Context, videoID string, metrics entity.RunMetrics) error
	// Find returns the stored record, or (nil, nil) when none exists.
	Find(ctx context.Context, videoID string) (*entity.RunMetrics, error)
}
