package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *entity.ExtractionRun) error {
	query := `
		INSERT INTO extraction_runs (
			id, video_id, query, status, step_count, frame_count,
			cached, archive_key, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.VideoID, run.Query, string(run.Status),
		run.StepCount, run.FrameCount, run.Cached, run.ArchiveKey,
		run.ErrorMessage, run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) Update(ctx context.Context, run *entity.ExtractionRun) error {
	query := `
		UPDATE extraction_runs SET
			video_id=$2, status=$3, step_count=$4, frame_count=$5,
			cached=$6, archive_key=$7, error_message=$8, updated_at=$9, completed_at=$10
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.VideoID, string(run.Status), run.StepCount, run.FrameCount,
		run.Cached, run.ArchiveKey, run.ErrorMessage, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionRun, error) {
	query := `
		SELECT id, video_id, query, status, step_count, frame_count,
			cached, archive_key, error_message, created_at, updated_at, completed_at
		FROM extraction_runs WHERE id=$1`

	run := &entity.ExtractionRun{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.VideoID, &run.Query, &status, &run.StepCount, &run.FrameCount,
		&run.Cached, &run.ArchiveKey, &run.ErrorMessage,
		&run.CreatedAt, &run.UpdatedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find run by id: %w", err)
	}
	run.Status = entity.RunStatus(status)
	return run, nil
}

// MetricsRepository keeps the cumulative per-video metrics record as a JSONB
// document, merged read-modify-write inside a transaction.
type MetricsRepository struct {
	pool *pgxpool.Pool
}

func NewMetricsRepository(pool *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{pool: pool}
}

func (r *MetricsRepository) Merge(ctx context.Context, videoID string, metrics entity.RunMetrics) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin metrics tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cumulative := entity.RunMetrics{VideoID: videoID}
	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT metrics FROM video_metrics WHERE video_id=$1 FOR UPDATE`, videoID,
	).Scan(&raw)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, &cumulative); jsonErr != nil {
			// Unreadable record: start over rather than fail the run.
			cumulative = entity.RunMetrics{VideoID: videoID}
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return fmt.Errorf("read metrics record: %w", err)
	}

	cumulative.Merge(metrics)
	merged, err := json.Marshal(cumulative)
	if err != nil {
		return fmt.Errorf("marshal metrics record: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO video_metrics (video_id, metrics, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (video_id) DO UPDATE SET metrics=$2, updated_at=now()`,
		videoID, merged,
	)
	if err != nil {
		return fmt.Errorf("upsert metrics record: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *MetricsRepository) Find(ctx context.Context, videoID string) (*entity.RunMetrics, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT metrics FROM video_metrics WHERE video_id=$1`, videoID,
	).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("find metrics record: %w", err)
	}

	metrics := &entity.RunMetrics{}
	if err := json.Unmarshal(raw, metrics); err != nil {
		return nil, fmt.Errorf("decode metrics record: %w", err)
	}
	return metrics, nil
}
