package synthesis

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/port"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Position gate: with at least this many frames, drop the leading 15% and
// trailing 5% of the sequence (intros and outros).
const (
	positionGateMinFrames = 20
	introFraction         = 0.15
	outroFraction         = 0.05
)

const (
	completeAction  = "COMPLETE"
	completeThought = "The task is now complete."
)

// Synthesizer converts per-frame model output into validated, deduplicated,
// coordinate-annotated steps. It makes a single sequential pass over the
// frames; each frame either survives every gate and emits a step or is
// skipped with a reason.
type Synthesizer struct {
	infer  port.InferenceService
	logger *zap.Logger
}

func New(infer port.InferenceService, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{infer: infer, logger: logger}
}

// skipReason labels why a frame produced no step. Skips are expected control
// flow, not errors; only stage-level problems abort the run.
type skipReason string

const (
	skipPosition     skipReason = "position_gate"
	skipInference    skipReason = "inference_error"
	skipUnparsable   skipReason = "unparsable_response"
	skipContentIntro skipReason = "content_intro"
	skipEarlyDone    skipReason = "completion_before_last_frame"
	skipLowValue     skipReason = "low_value_thought"
	skipExplicit     skipReason = "explicit_skip"
	skipConsecutive  skipReason = "consecutive_action"
	skipDupThought   skipReason = "duplicate_thought"
	skipNoCoords     skipReason = "missing_coordinates"
)

func (s *Synthesizer) Synthesize(ctx context.Context, frames []entity.Frame, query string, outputDir string, progress port.ProgressFunc) ([]entity.Step, *entity.SynthesisMetrics, error) {
	metrics := &entity.SynthesisMetrics{ActionTypeCounts: make(map[string]int)}
	if len(frames) == 0 {
		return nil, metrics, nil
	}

	if err := s.infer.Acquire(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: acquire inference service: %v", entity.ErrSynthesisFailed, err)
	}
	defer s.infer.Release()

	n := len(frames)
	introCutoff, outroCutoff := positionCutoffs(n)

	// The last frame inference actually sees. When the position gate is
	// active the trailing frames never reach the model, so the completion
	// gate keys on the last surviving index, not the raw end of sequence.
	lastProcessed := n - 1
	if n >= positionGateMinFrames {
		lastProcessed = outroCutoff - 1
	}

	var (
		steps   []entity.Step
		history entity.ActionHistory
	)

	for i, frame := range frames {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		isLast := i == lastProcessed
		log := s.logger.With(zap.Int("frame", i), zap.String("path", filepath.Base(frame.Path)))

		if n >= positionGateMinFrames && (i < introCutoff || i >= outroCutoff) {
			s.skip(log, skipPosition)
			s.report(progress, i+1, n)
			continue
		}
		metrics.FramesProcessed++

		response, err := s.infer.Infer(ctx, frame.Path, BuildPrompt(query, history.Window(historyWindow)))
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			log.Warn("inference failed for frame, skipping", zap.Error(err))
			s.skip(log, skipInference)
			s.report(progress, i+1, n)
			continue
		}

		thought, action, ok := parseResponse(response)
		if !ok {
			s.skip(log, skipUnparsable)
			s.report(progress, i+1, n)
			continue
		}

		actionType := entity.ClassifyAction(action)

		// Only consulted before the first accepted step, on early frames the
		// position gate did not already exclude.
		if history.Len() == 0 && i < 5 && isIntroOutroThought(thought) {
			s.skip(log, skipContentIntro)
			s.report(progress, i+1, n)
			continue
		}

		// Completion is only meaningful on the final processed frame; a
		// PRESS_HOME there is promoted to the canonical completion step.
		if actionType == entity.ActionComplete || (actionType == entity.ActionPressHome && isLast) {
			if !isLast {
				s.skip(log, skipEarlyDone)
				s.report(progress, i+1, n)
				continue
			}
			action, thought = completeAction, completeThought
			actionType = entity.ActionComplete
		}

		if actionType != entity.ActionComplete && isLowValueThought(thought) {
			s.skip(log, skipLowValue)
			s.report(progress, i+1, n)
			continue
		}

		if containsSkipMarker(thought, action) {
			s.skip(log, skipExplicit)
			s.report(progress, i+1, n)
			continue
		}

		prev, hasPrev := history.Last()
		if hasPrev && (actionType == entity.ActionScroll || actionType == entity.ActionWait) &&
			actionType == entity.ClassifyAction(prev.Action) {
			metrics.DuplicateStepsFiltered++
			s.skip(log, skipConsecutive)
			s.report(progress, i+1, n)
			continue
		}

		if hasPrev && strings.EqualFold(thought, prev.Thought) {
			metrics.DuplicateStepsFiltered++
			s.skip(log, skipDupThought)
			s.report(progress, i+1, n)
			continue
		}

		img, err := imaging.Open(frame.Path)
		if err != nil {
			log.Warn("frame image unreadable, skipping", zap.Error(err))
			s.skip(log, skipInference)
			s.report(progress, i+1, n)
			continue
		}
		width, height := img.Bounds().Dx(), img.Bounds().Dy()

		coords := extractCoordinates(action, width, height)
		if coords == nil && actionType.RequiresCoordinates() {
			s.skip(log, skipNoCoords)
			s.report(progress, i+1, n)
			continue
		}

		step := entity.Step{
			StepNumber:  len(steps) + 1,
			Frame:       filepath.Base(frame.Path),
			Thought:     thought,
			Action:      action,
			ActionType:  actionType,
			Coordinates: coords,
		}
		if coords != nil {
			box := boundingBoxFor(*coords, width, height)
			step.BoundingBox = &box
		}

		if err := persistStep(&step, img, outputDir); err != nil {
			log.Warn("failed to persist step artifact", zap.Error(err))
		}

		steps = append(steps, step)
		history.Append(thought, action)

		metrics.TotalSteps++
		metrics.ActionTypeCounts[string(actionType)]++
		if coords != nil {
			metrics.StepsWithCoordinates++
		}

		log.Info("step accepted",
			zap.Int("step_number", step.StepNumber),
			zap.String("action_type", string(actionType)),
			zap.Bool("has_coordinates", coords != nil),
		)
		s.report(progress, i+1, n)
	}

	if metrics.TotalSteps > 0 {
		metrics.CoordinateCoveragePercent = math.Round(float64(metrics.StepsWithCoordinates)/float64(metrics.TotalSteps)*10000) / 100
	}

	s.logger.Info("step synthesis completed",
		zap.Int("steps", metrics.TotalSteps),
		zap.Int("duplicates_filtered", metrics.DuplicateStepsFiltered),
		zap.Int("frames_processed", metrics.FramesProcessed),
	)
	return steps, metrics, nil
}

// positionCutoffs returns the half-open [introCutoff, outroCutoff) index
// range that survives the position gate.
func positionCutoffs(n int) (int, int) {
	intro := int(float64(n) * introFraction)
	outro := n - int(float64(n)*outroFraction)
	return intro, outro
}

func (s *Synthesizer) skip(log *zap.Logger, reason skipReason) {
	log.Debug("frame skipped", zap.String("reason", string(reason)))
}

func (s *Synthesizer) report(progress port.ProgressFunc, done, total int) {
	if progress != nil {
		progress(done, total)
	}
}
