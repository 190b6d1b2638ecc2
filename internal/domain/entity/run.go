package entity

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
)

// ExtractionRun is the persisted record of one pipeline invocation.
type ExtractionRun struct {
	ID           uuid.UUID
	VideoID      string
	Query        string
	Status       RunStatus
	StepCount    int
	FrameCount   int
	Cached       bool
	ArchiveKey   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

func NewExtractionRun(requestID uuid.UUID, query string) *ExtractionRun {
	now := time.Now().UTC()
	return &ExtractionRun{
		ID:        requestID,
		Query:     query,
		Status:    RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *ExtractionRun) MarkProcessing(videoID string) {
	r.Status = RunStatusProcessing
	r.VideoID = videoID
	r.UpdatedAt = time.Now().UTC()
}

func (r *ExtractionRun) MarkCompleted(stepCount, frameCount int, cached bool, archiveKey string) {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.StepCount = stepCount
	r.FrameCount = frameCount
	r.Cached = cached
	r.ArchiveKey = archiveKey
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *ExtractionRun) MarkFailed(errMsg string) {
	r.Status = RunStatusFailed
	r.ErrorMessage = errMsg
	r.UpdatedAt = time.Now().UTC()
}
