package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/port"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Orchestrator sequences the extraction stages, runs the long stages on a
// background worker, and streams progress events to the caller. Stages run
// strictly one after another; any stage failure ends the stream with a
// terminal error event.
type Orchestrator struct {
	discovery   port.VideoDiscovery
	acquirer    port.VideoAcquirer
	reader      port.VideoReader
	sampler     port.FrameSampler
	cropper     port.ScreenCropper
	synthesizer port.StepSynthesizer
	cache       port.ResultCache
	metricsRepo port.MetricsRepository
	logger      *zap.Logger

	outputRoot string
	videosDir  string

	// Heartbeat spacing while a background stage is quiet. Sampling emits
	// rarely so its heartbeat is long; synthesis reports per frame and the
	// heartbeat only covers model stalls.
	samplingHeartbeat  time.Duration
	synthesisHeartbeat time.Duration

	eventBuffer int
}

type Config struct {
	OutputRoot string
	VideosDir  string
}

func New(
	discovery port.VideoDiscovery,
	acquirer port.VideoAcquirer,
	reader port.VideoReader,
	sampler port.FrameSampler,
	cropper port.ScreenCropper,
	synthesizer port.StepSynthesizer,
	cache port.ResultCache,
	metricsRepo port.MetricsRepository,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		discovery:          discovery,
		acquirer:           acquirer,
		reader:             reader,
		sampler:            sampler,
		cropper:            cropper,
		synthesizer:        synthesizer,
		cache:              cache,
		metricsRepo:        metricsRepo,
		logger:             logger,
		outputRoot:         cfg.OutputRoot,
		videosDir:          cfg.VideosDir,
		samplingHeartbeat:  10 * time.Second,
		synthesisHeartbeat: 10 * time.Second,
		eventBuffer:        32,
	}
}

// Run starts the pipeline for a query and returns the progress stream. The
// channel is closed after the terminal completion or error event. The
// background work is not cancelled when the consumer stops reading; its
// result is simply discarded.
func (o *Orchestrator) Run(ctx context.Context, query string) <-chan entity.ProgressEvent {
	events := make(chan entity.ProgressEvent, o.eventBuffer)
	go func() {
		defer close(events)
		o.run(ctx, query, events)
	}()
	return events
}

// RunSync drains the progress stream and returns only the final result.
func (o *Orchestrator) RunSync(ctx context.Context, query string) (*entity.PipelineResult, error) {
	var result *entity.PipelineResult
	var errMsg string
	for event := range o.Run(ctx, query) {
		switch event.Stage {
		case entity.StageComplete:
			if r, ok := event.Payload["result"].(*entity.PipelineResult); ok {
				result = r
			}
		case entity.StageError:
			errMsg = event.Message
		}
	}
	if result != nil {
		return result, nil
	}
	if errMsg == "" {
		errMsg = "pipeline ended without a result"
	}
	return nil, fmt.Errorf("%s", errMsg)
}

func (o *Orchestrator) run(ctx context.Context, query string, events chan<- entity.ProgressEvent) {
	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "Orchestrator.run")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	timing := make(map[string]float64)
	emit := func(stage entity.Stage, status entity.Status, message string, payload map[string]any) {
		events <- entity.ProgressEvent{Stage: stage, Status: status, Message: message, Payload: payload}
	}
	fail := func(stage entity.Stage, err error) {
		o.logger.Error("pipeline stage failed", zap.String("stage", string(stage)), zap.Error(err))
		emit(stage, entity.StatusError, err.Error(), nil)
		emit(entity.StageError, entity.StatusError, err.Error(), nil)
		metrics.RunsProcessedTotal.WithLabelValues("failed").Inc()
	}

	emit(entity.StageConnected, entity.StatusConnected, "pipeline connected", nil)

	// Discovery.
	emit(entity.StageDiscovery, entity.StatusActive, "searching for a tutorial video", nil)
	stageStart := time.Now()
	ctxD, spanD := tracer.Start(ctx, "discovery")
	video, err := o.discovery.Find(ctxD, query)
	spanD.End()
	if err != nil {
		fail(entity.StageDiscovery, err)
		return
	}
	timing["discovery"] = time.Since(stageStart).Seconds()
	metrics.StageDuration.WithLabelValues("discovery").Observe(timing["discovery"])
	emit(entity.StageDiscovery, entity.StatusCompleted, fmt.Sprintf("found video: %s", video.Title), map[string]any{
		"video_id": video.ID,
		"url":      video.URL,
		"title":    video.Title,
		"duration": video.DurationSeconds,
		"views":    video.Views,
	})

	videoID := o.cache.Identity(video.URL)
	span.SetAttributes(attribute.String("video.id", videoID))
	log := o.logger.With(zap.String("video_id", videoID), zap.String("query", query))

	// Cache lookup.
	emit(entity.StageCacheLookup, entity.StatusActive, "checking cached results", nil)
	if steps, ok := o.cache.Get(videoID); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		log.Info("cache hit, skipping pipeline", zap.Int("steps", len(steps)))
		emit(entity.StageCacheLookup, entity.StatusCompleted, "cached result found", nil)
		for _, stage := range []entity.Stage{
			entity.StageAcquisition, entity.StageSampling, entity.StageCropping, entity.StageSynthesis,
		} {
			emit(stage, entity.StatusCompleted, fmt.Sprintf("using cached %s", stage), nil)
		}
		result := &entity.PipelineResult{
			VideoID: videoID,
			Query:   query,
			Steps:   steps,
			Timing:  timing,
			Cached:  true,
		}
		emit(entity.StageComplete, entity.StatusCompleted, "tutorial ready (cached)", map[string]any{"result": result})
		metrics.RunsProcessedTotal.WithLabelValues("cached").Inc()
		return
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	emit(entity.StageCacheLookup, entity.StatusCompleted, "no cached result", nil)

	videoDir := filepath.Join(o.outputRoot, videoID)

	// Acquisition.
	emit(entity.StageAcquisition, entity.StatusActive, "downloading video", nil)
	stageStart = time.Now()
	ctxA, spanA := tracer.Start(ctx, "acquisition")
	videoPath, err := o.acquirer.Fetch(ctxA, video.URL, filepath.Join(o.videosDir, videoID))
	spanA.End()
	if err != nil {
		fail(entity.StageAcquisition, fmt.Errorf("%w: %v", entity.ErrAcquisitionFailed, err))
		return
	}
	timing["acquisition"] = time.Since(stageStart).Seconds()
	metrics.StageDuration.WithLabelValues("acquisition").Observe(timing["acquisition"])
	emit(entity.StageAcquisition, entity.StatusCompleted, "video downloaded", nil)

	asset, err := o.reader.Probe(ctx, videoPath)
	if err != nil {
		fail(entity.StageSampling, fmt.Errorf("%w: %v", entity.ErrSamplingFailed, err))
		return
	}
	asset.ID = videoID

	// Frame sampling, on a background worker.
	emit(entity.StageSampling, entity.StatusActive, "sampling representative frames", nil)
	stageStart = time.Now()
	ctxS, spanS := tracer.Start(ctx, "sampling")
	frames, samplingMetrics, err := o.runSampling(ctxS, asset, videoDir, emit)
	spanS.End()
	if err != nil {
		fail(entity.StageSampling, err)
		return
	}
	timing["sampling"] = time.Since(stageStart).Seconds()
	metrics.StageDuration.WithLabelValues("sampling").Observe(timing["sampling"])
	metrics.FramesSampledTotal.Add(float64(samplingMetrics.FrameCount))
	metrics.DuplicateFramesFilteredTotal.Add(float64(samplingMetrics.DuplicateFramesFiltered))
	emit(entity.StageSampling, entity.StatusCompleted,
		fmt.Sprintf("%d frames selected", len(frames)),
		map[string]any{"metrics": samplingMetrics},
	)

	// Screen cropping.
	emit(entity.StageCropping, entity.StatusActive, "isolating device screens", nil)
	stageStart = time.Now()
	ctxC, spanC := tracer.Start(ctx, "cropping")
	cropped, croppingMetrics, err := o.cropper.Crop(ctxC, frames, videoDir)
	spanC.End()
	if err != nil {
		fail(entity.StageCropping, err)
		return
	}
	timing["cropping"] = time.Since(stageStart).Seconds()
	metrics.StageDuration.WithLabelValues("cropping").Observe(timing["cropping"])
	emit(entity.StageCropping, entity.StatusCompleted,
		fmt.Sprintf("%d screens cropped", croppingMetrics.Successful), nil)

	// Step synthesis, on a background worker.
	emit(entity.StageSynthesis, entity.StatusActive, "generating tutorial steps", nil)
	stageStart = time.Now()
	ctxY, spanY := tracer.Start(ctx, "synthesis")
	steps, synthesisMetrics, err := o.runSynthesis(ctxY, cropped, query, videoDir, emit)
	spanY.End()
	if err != nil {
		fail(entity.StageSynthesis, err)
		return
	}
	timing["synthesis"] = time.Since(stageStart).Seconds()
	metrics.StageDuration.WithLabelValues("synthesis").Observe(timing["synthesis"])
	for actionType, count := range synthesisMetrics.ActionTypeCounts {
		metrics.StepsSynthesizedTotal.WithLabelValues(actionType).Add(float64(count))
	}
	emit(entity.StageSynthesis, entity.StatusCompleted,
		fmt.Sprintf("%d steps generated", synthesisMetrics.TotalSteps),
		map[string]any{"metrics": synthesisMetrics},
	)

	// Cache write.
	emit(entity.StageCacheWrite, entity.StatusActive, "caching result", nil)
	if err := o.cache.Put(videoID, steps); err != nil {
		fail(entity.StageCacheWrite, err)
		return
	}
	emit(entity.StageCacheWrite, entity.StatusCompleted, "result cached", nil)

	o.recordMetrics(ctx, videoID, query, videoDir, timing, samplingMetrics, croppingMetrics, synthesisMetrics, log)

	result := &entity.PipelineResult{
		VideoID: videoID,
		Query:   query,
		Steps:   steps,
		Timing:  timing,
	}
	emit(entity.StageComplete, entity.StatusCompleted, "tutorial ready", map[string]any{"result": result})
	metrics.RunsProcessedTotal.WithLabelValues("completed").Inc()
	log.Info("pipeline completed", zap.Int("steps", len(steps)))
}

type samplingResult struct {
	frames  []entity.Frame
	metrics *entity.SamplingMetrics
	err     error
}

// runSampling executes the sampler on a worker goroutine and forwards
// heartbeat events while waiting. The worker is not stopped if the consumer
// goes away; it runs to completion and its result is discarded.
func (o *Orchestrator) runSampling(ctx context.Context, asset *entity.VideoAsset, videoDir string, emit func(entity.Stage, entity.Status, string, map[string]any)) ([]entity.Frame, *entity.SamplingMetrics, error) {
	resultCh := make(chan samplingResult, 1)
	go func() {
		frames, m, err := o.sampler.Sample(ctx, asset, videoDir)
		resultCh <- samplingResult{frames: frames, metrics: m, err: err}
	}()

	for {
		select {
		case res := <-resultCh:
			return res.frames, res.metrics, res.err
		case <-time.After(o.samplingHeartbeat):
			emit(entity.StageSampling, entity.StatusActive, "still sampling frames", nil)
		}
	}
}

type synthesisResult struct {
	steps   []entity.Step
	metrics *entity.SynthesisMetrics
	err     error
}

// runSynthesis executes the synthesizer on a worker goroutine, forwarding
// per-frame progress as it arrives over a bounded channel plus heartbeats
// during model stalls.
func (o *Orchestrator) runSynthesis(ctx context.Context, frames []entity.Frame, query, videoDir string, emit func(entity.Stage, entity.Status, string, map[string]any)) ([]entity.Step, *entity.SynthesisMetrics, error) {
	progressCh := make(chan [2]int, 64)
	resultCh := make(chan synthesisResult, 1)
	go func() {
		steps, m, err := o.synthesizer.Synthesize(ctx, frames, query, videoDir, func(done, total int) {
			select {
			case progressCh <- [2]int{done, total}:
			default: // drop rather than stall the worker
			}
		})
		resultCh <- synthesisResult{steps: steps, metrics: m, err: err}
	}()

	for {
		select {
		case res := <-resultCh:
			return res.steps, res.metrics, res.err
		case p := <-progressCh:
			emit(entity.StageSynthesis, entity.StatusActive,
				fmt.Sprintf("analyzing frame %d of %d", p[0], p[1]),
				map[string]any{"processed": p[0], "total": p[1]},
			)
		case <-time.After(o.synthesisHeartbeat):
			emit(entity.StageSynthesis, entity.StatusActive, "still generating steps", nil)
		}
	}
}

// recordMetrics merges this run into the cumulative per-video record, both in
// the repository and as metrics.json next to the run's artifacts.
func (o *Orchestrator) recordMetrics(
	ctx context.Context,
	videoID, query, videoDir string,
	timing map[string]float64,
	sampling *entity.SamplingMetrics,
	cropping *entity.CroppingMetrics,
	synthesis *entity.SynthesisMetrics,
	log *zap.Logger,
) {
	run := entity.RunMetrics{
		VideoID:       videoID,
		Query:         query,
		StageSeconds:  timing,
		Sampling:      sampling,
		Cropping:      cropping,
		Synthesis:     synthesis,
		RunsCompleted: 1,
	}

	if o.metricsRepo != nil {
		if err := o.metricsRepo.Merge(ctx, videoID, run); err != nil {
			log.Warn("failed to merge run metrics", zap.Error(err))
		}
	}

	cumulative := entity.RunMetrics{VideoID: videoID}
	path := filepath.Join(videoDir, "metrics.json")
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cumulative)
	}
	cumulative.Merge(run)

	data, err := json.MarshalIndent(cumulative, "", "  ")
	if err != nil {
		log.Warn("failed to marshal metrics record", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn("failed to write metrics record", zap.Error(err))
	}
}
