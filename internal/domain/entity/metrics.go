package entity

// SamplingMetrics summarizes one frame-sampling pass.
type SamplingMetrics struct {
	FrameCount              int     `json:"frame_count"`
	FramesExamined          int     `json:"frames_examined"`
	DuplicateFramesFiltered int     `json:"duplicate_frames_filtered"`
	DuplicateRatePercent    float64 `json:"duplicate_rate_percent"`
	AverageSimilarity       float64 `json:"average_ssim_score"`
	FramesPerMinute         float64 `json:"frames_per_minute"`
	VideoDurationSeconds    float64 `json:"video_duration_seconds"`
}

// CroppingMetrics summarizes one screen-cropping pass.
type CroppingMetrics struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// SynthesisMetrics summarizes one step-synthesis pass.
type SynthesisMetrics struct {
	TotalSteps                int            `json:"total_steps"`
	StepsWithCoordinates      int            `json:"steps_with_coordinates"`
	CoordinateCoveragePercent float64        `json:"coordinate_coverage_percent"`
	DuplicateStepsFiltered    int            `json:"duplicate_steps_filtered"`
	FramesProcessed           int            `json:"frames_processed"`
	ActionTypeCounts          map[string]int `json:"action_type_counts"`
}

// RunMetrics is the cumulative metrics record kept per video identity.
// Repeated runs merge into it field by field rather than overwriting it.
type RunMetrics struct {
	VideoID       string             `json:"video_id"`
	Query         string             `json:"query"`
	StageSeconds  map[string]float64 `json:"stage_seconds"`
	Sampling      *SamplingMetrics   `json:"sampling,omitempty"`
	Cropping      *CroppingMetrics   `json:"cropping,omitempty"`
	Synthesis     *SynthesisMetrics  `json:"synthesis,omitempty"`
	RunsCompleted int                `json:"runs_completed"`
}

// Merge folds another run's metrics into the cumulative record. Non-nil
// sections replace older ones; stage timings are overwritten per stage so the
// record always reflects the latest observation of each stage.
func (m *RunMetrics) Merge(other RunMetrics) {
	if m.StageSeconds == nil {
		m.StageSeconds = make(map[string]float64)
	}
	for stage, secs := range other.StageSeconds {
		m.StageSeconds[stage] = secs
	}
	if other.Query != "" {
		m.Query = other.Query
	}
	if other.Sampling != nil {
		m.Sampling = other.Sampling
	}
	if other.Cropping != nil {
		m.Cropping = other.Cropping
	}
	if other.Synthesis != nil {
		m.Synthesis = other.Synthesis
	}
	m.RunsCompleted += other.RunsCompleted
}
