package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorial_runs_processed_total",
		Help: "Total number of extraction runs, by outcome",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutorial_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorial_frames_sampled_total",
		Help: "Total number of frames kept by the sampler across all runs",
	})

	DuplicateFramesFilteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorial_duplicate_frames_filtered_total",
		Help: "Total number of near-duplicate frames discarded by the sampler",
	})

	StepsSynthesizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorial_steps_synthesized_total",
		Help: "Total number of accepted steps, by action type",
	}, []string{"action_type"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorial_cache_lookups_total",
		Help: "Result cache lookups, by outcome",
	}, []string{"result"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutorial_active_runs",
		Help: "Number of extraction runs currently in flight",
	})
)
