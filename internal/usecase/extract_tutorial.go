package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/port"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PipelineRunner streams progress events for one extraction query.
type PipelineRunner interface {
	Run(ctx context.Context, query string) <-chan entity.ProgressEvent
}

// ExtractTutorialUseCase bridges queue requests to the pipeline: it runs the
// orchestrator, forwards every progress event to the progress queue, records
// the run, and archives the artifacts of successful runs. Failed requests are
// dead-lettered without retrying; the caller re-invokes if desired.
type ExtractTutorialUseCase struct {
	orchestrator PipelineRunner
	repo         port.RunRepository
	publisher    port.ProgressPublisher
	dlq          port.DLQPublisher
	notifier     port.FailureNotifier
	archiver     port.Archiver
	store        port.ArtifactStore
	logger       *zap.Logger
	outputRoot   string
	tempDir      string
}

type ExtractTutorialConfig struct {
	OutputRoot string
	TempDir    string
}

func NewExtractTutorialUseCase(
	orchestrator PipelineRunner,
	repo port.RunRepository,
	publisher port.ProgressPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	archiver port.Archiver,
	store port.ArtifactStore,
	logger *zap.Logger,
	cfg ExtractTutorialConfig,
) *ExtractTutorialUseCase {
	return &ExtractTutorialUseCase{
		orchestrator: orchestrator,
		repo:         repo,
		publisher:    publisher,
		dlq:          dlq,
		notifier:     notifier,
		archiver:     archiver,
		store:        store,
		logger:       logger,
		outputRoot:   cfg.OutputRoot,
		tempDir:      cfg.TempDir,
	}
}

func (uc *ExtractTutorialUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractTutorialUseCase.Execute")
	defer span.End()

	var msg entity.ExtractionRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal request", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("request.id", msg.RequestID.String()),
		attribute.String("request.query", msg.Query),
	)
	log := uc.logger.With(zap.String("request_id", msg.RequestID.String()), zap.String("query", msg.Query))

	run, err := uc.repo.FindByID(ctx, msg.RequestID)
	if err != nil {
		run = entity.NewExtractionRun(msg.RequestID, msg.Query)
		if err := uc.repo.Create(ctx, run); err != nil {
			log.Error("failed to create run record", zap.Error(err))
			return fmt.Errorf("create run: %w", err)
		}
	}

	var result *entity.PipelineResult
	var failure string
	frameCount := 0

	for event := range uc.orchestrator.Run(ctx, msg.Query) {
		uc.publishEvent(ctx, msg, event, log)

		switch event.Stage {
		case entity.StageSampling:
			if m, ok := event.Payload["metrics"].(*entity.SamplingMetrics); ok {
				frameCount = m.FrameCount
			}
		case entity.StageComplete:
			if r, ok := event.Payload["result"].(*entity.PipelineResult); ok {
				result = r
			}
		case entity.StageError:
			failure = event.Message
		}
	}

	if result == nil {
		if failure == "" {
			failure = "pipeline ended without a result"
		}
		return uc.handleFailure(ctx, run, msg, rawMsg, failure, log)
	}

	run.MarkProcessing(result.VideoID)
	_ = uc.repo.Update(ctx, run)

	archiveKey := uc.archiveRun(ctx, msg.RequestID.String(), result, log)

	run.MarkCompleted(len(result.Steps), frameCount, result.Cached, archiveKey)
	if err := uc.repo.Update(ctx, run); err != nil {
		log.Error("failed to update run record", zap.Error(err))
	}

	log.Info("request completed",
		zap.String("video_id", result.VideoID),
		zap.Int("steps", len(result.Steps)),
		zap.Bool("cached", result.Cached),
	)
	return nil
}

func (uc *ExtractTutorialUseCase) publishEvent(ctx context.Context, msg entity.ExtractionRequestMessage, event entity.ProgressEvent, log *zap.Logger) {
	payload := event.Payload
	// The in-process result pointer is not wire-representable; flatten it.
	if result, ok := payload["result"].(*entity.PipelineResult); ok {
		payload = map[string]any{
			"video_id":       result.VideoID,
			"query":          result.Query,
			"steps":          result.Steps,
			"timing_seconds": result.Timing,
			"cached":         result.Cached,
		}
	}

	out := entity.ProgressEventMessage{
		RequestID: msg.RequestID,
		Query:     msg.Query,
		Stage:     event.Stage,
		Status:    event.Status,
		Message:   event.Message,
		Payload:   payload,
	}
	data, err := json.Marshal(out)
	if err != nil {
		log.Error("failed to marshal progress event", zap.Error(err))
		return
	}
	if err := uc.publisher.PublishProgress(ctx, data); err != nil {
		log.Error("failed to publish progress event", zap.Error(err))
	}
}

// archiveRun zips the run's artifact directory and uploads it; failures are
// logged, not fatal, since the primary result is already cached.
func (uc *ExtractTutorialUseCase) archiveRun(ctx context.Context, requestID string, result *entity.PipelineResult, log *zap.Logger) string {
	if result.Cached || uc.archiver == nil || uc.store == nil {
		return ""
	}

	videoDir := filepath.Join(uc.outputRoot, result.VideoID)
	if err := os.MkdirAll(uc.tempDir, 0755); err != nil {
		log.Warn("failed to create temp dir for archive", zap.Error(err))
		return ""
	}
	zipPath := filepath.Join(uc.tempDir, fmt.Sprintf("run_%s.zip", requestID))
	defer os.Remove(zipPath)

	if err := uc.archiver.ArchiveDir(ctx, videoDir, zipPath); err != nil {
		log.Warn("failed to archive run artifacts", zap.Error(err))
		return ""
	}

	zipFile, err := os.Open(zipPath)
	if err != nil {
		log.Warn("failed to open archive", zap.Error(err))
		return ""
	}
	defer zipFile.Close()

	stat, err := zipFile.Stat()
	if err != nil {
		log.Warn("failed to stat archive", zap.Error(err))
		return ""
	}

	archiveKey := fmt.Sprintf("%s/run_%s.zip", result.VideoID, requestID)
	if err := uc.store.UploadArchive(ctx, archiveKey, zipFile, stat.Size()); err != nil {
		log.Warn("failed to upload archive", zap.Error(err))
		return ""
	}

	log.Info("run artifacts archived", zap.String("archive_key", archiveKey))
	return archiveKey
}

func (uc *ExtractTutorialUseCase) handleFailure(ctx context.Context, run *entity.ExtractionRun, msg entity.ExtractionRequestMessage, rawMsg []byte, errMsg string, log *zap.Logger) error {
	run.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, run)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	if msg.UserEmail != "" && uc.notifier != nil {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, msg.RequestID.String(), msg.Query, errMsg)
	}

	log.Warn("request failed, dead-lettered", zap.String("error", errMsg))
	return nil
}
