package entity

// Stage identifies one pipeline stage in the progress stream.
type Stage string

const (
	StageConnected   Stage = "connected"
	StageDiscovery   Stage = "video_search"
	StageCacheLookup Stage = "cache_lookup"
	StageAcquisition Stage = "video_download"
	StageSampling    Stage = "frame_extraction"
	StageCropping    Stage = "ui_crop"
	StageSynthesis   Stage = "step_generation"
	StageCacheWrite  Stage = "cache_write"
	StageComplete    Stage = "complete"
	StageError       Stage = "error"
)

// Status is the lifecycle state carried by a ProgressEvent.
type Status string

const (
	StatusConnected Status = "connected"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ProgressEvent is one record in the streamed progress channel. Events are
// ephemeral and never persisted.
type ProgressEvent struct {
	Stage   Stage          `json:"stage"`
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Payload map[string]any `json:"data,omitempty"`
}

// Terminal reports whether this event ends the stream.
func (e ProgressEvent) Terminal() bool {
	return e.Stage == StageComplete || e.Stage == StageError
}

// PipelineResult is the payload of the terminal completion event.
type PipelineResult struct {
	VideoID string             `json:"video_id"`
	Query   string             `json:"query"`
	Steps   []Step             `json:"steps"`
	Timing  map[string]float64 `json:"timing_seconds"`
	Cached  bool               `json:"cached"`
}
