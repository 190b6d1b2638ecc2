package entity

// VideoDescriptor is the discovery result for a query: the best-matching
// tutorial video before it has been fetched.
type VideoDescriptor struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
	Views           int64  `json:"views"`
	Definition      string `json:"definition"`
	Description     string `json:"description,omitempty"`
}

// VideoAsset is an acquired video on local disk, plus the container metadata
// needed to plan frame sampling.
type VideoAsset struct {
	ID              string  `json:"id"`
	LocalPath       string  `json:"local_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	FPS             float64 `json:"fps"`
	TotalFrames     int     `json:"total_frames"`
}

// Frame is one sampled frame, addressed by its index in the original video.
type Frame struct {
	Index            int     `json:"index"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Path             string  `json:"path"`
}
