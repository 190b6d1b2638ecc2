package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedRunner struct {
	events []entity.ProgressEvent
}

func (r *scriptedRunner) Run(ctx context.Context, query string) <-chan entity.ProgressEvent {
	ch := make(chan entity.ProgressEvent, len(r.events))
	for _, e := range r.events {
		ch <- e
	}
	close(ch)
	return ch
}

type memoryRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*entity.ExtractionRun
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{runs: make(map[uuid.UUID]*entity.ExtractionRun)}
}

func (r *memoryRepo) Create(ctx context.Context, run *entity.ExtractionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, run *entity.ExtractionRun) error {
	return r.Create(ctx, run)
}

func (r *memoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *run
	return &copied, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingPublisher) PublishProgress(ctx context.Context, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

type recordingDLQ struct {
	mu      sync.Mutex
	reasons []string
}

func (d *recordingDLQ) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	emails []string
}

func (n *recordingNotifier) NotifyFailure(ctx context.Context, userEmail, requestID, query, errorMsg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, userEmail)
	return nil
}

type fakeArchiver struct{}

func (f *fakeArchiver) ArchiveDir(ctx context.Context, dir, outputPath string) error {
	return os.WriteFile(outputPath, []byte("zip-bytes"), 0644)
}

type recordingStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingStore) UploadArchive(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, objectKey)
	return nil
}

type fixture struct {
	uc       *ExtractTutorialUseCase
	repo     *memoryRepo
	progress *recordingPublisher
	dlq      *recordingDLQ
	notifier *recordingNotifier
	store    *recordingStore
}

func newFixture(t *testing.T, runner PipelineRunner) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemoryRepo(),
		progress: &recordingPublisher{},
		dlq:      &recordingDLQ{},
		notifier: &recordingNotifier{},
		store:    &recordingStore{},
	}
	outputRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outputRoot, "vid1"), 0755))
	f.uc = NewExtractTutorialUseCase(
		runner,
		f.repo, f.progress, f.dlq, f.notifier,
		&fakeArchiver{}, f.store,
		zap.NewNop(),
		ExtractTutorialConfig{OutputRoot: outputRoot, TempDir: t.TempDir()},
	)
	return f
}

func requestBody(t *testing.T, id uuid.UUID, email string) []byte {
	t.Helper()
	body, err := json.Marshal(entity.ExtractionRequestMessage{RequestID: id, Query: "fix wifi", UserEmail: email})
	require.NoError(t, err)
	return body
}

func successEvents(result *entity.PipelineResult) []entity.ProgressEvent {
	return []entity.ProgressEvent{
		{Stage: entity.StageConnected, Status: entity.StatusConnected, Message: "pipeline connected"},
		{Stage: entity.StageDiscovery, Status: entity.StatusCompleted, Message: "found video"},
		{Stage: entity.StageSampling, Status: entity.StatusCompleted, Message: "frames selected",
			Payload: map[string]any{"metrics": &entity.SamplingMetrics{FrameCount: 7}}},
		{Stage: entity.StageComplete, Status: entity.StatusCompleted, Message: "tutorial ready",
			Payload: map[string]any{"result": result}},
	}
}

func TestExecuteSuccessArchivesAndCompletes(t *testing.T) {
	result := &entity.PipelineResult{
		VideoID: "vid1",
		Query:   "fix wifi",
		Steps:   []entity.Step{{StepNumber: 1}, {StepNumber: 2}},
	}
	f := newFixture(t, &scriptedRunner{events: successEvents(result)})

	id := uuid.New()
	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, id, "")))

	run, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.Equal(t, "vid1", run.VideoID)
	assert.Equal(t, 2, run.StepCount)
	assert.Equal(t, 7, run.FrameCount)
	assert.False(t, run.Cached)
	assert.Equal(t, "vid1/run_"+id.String()+".zip", run.ArchiveKey)
	require.NotNil(t, run.CompletedAt)

	assert.Equal(t, []string{"vid1/run_" + id.String() + ".zip"}, f.store.keys)
	assert.Len(t, f.progress.messages, 4, "every pipeline event is forwarded")
	assert.Empty(t, f.dlq.reasons)
	assert.Empty(t, f.notifier.emails)

	// The terminal event's payload is flattened for the wire.
	var terminal entity.ProgressEventMessage
	require.NoError(t, json.Unmarshal(f.progress.messages[3], &terminal))
	assert.Equal(t, entity.StageComplete, terminal.Stage)
	assert.Equal(t, "vid1", terminal.Payload["video_id"])
}

func TestExecuteCachedResultSkipsArchiving(t *testing.T) {
	result := &entity.PipelineResult{VideoID: "vid1", Steps: []entity.Step{{StepNumber: 1}}, Cached: true}
	f := newFixture(t, &scriptedRunner{events: successEvents(result)})

	id := uuid.New()
	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, id, "")))

	run, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.True(t, run.Cached)
	assert.Empty(t, run.ArchiveKey)
	assert.Empty(t, f.store.keys)
}

func TestExecuteFailureDeadLettersAndNotifies(t *testing.T) {
	events := []entity.ProgressEvent{
		{Stage: entity.StageConnected, Status: entity.StatusConnected},
		{Stage: entity.StageDiscovery, Status: entity.StatusError, Message: "no video found"},
		{Stage: entity.StageError, Status: entity.StatusError, Message: "no video found"},
	}
	f := newFixture(t, &scriptedRunner{events: events})

	id := uuid.New()
	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, id, "user@example.com")),
		"failures are dead-lettered, not retried")

	run, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusFailed, run.Status)
	assert.Equal(t, "no video found", run.ErrorMessage)

	require.Len(t, f.dlq.reasons, 1)
	assert.Equal(t, "no video found", f.dlq.reasons[0])
	assert.Equal(t, []string{"user@example.com"}, f.notifier.emails)
}

func TestExecuteFailureWithoutEmailSkipsNotification(t *testing.T) {
	events := []entity.ProgressEvent{
		{Stage: entity.StageError, Status: entity.StatusError, Message: "boom"},
	}
	f := newFixture(t, &scriptedRunner{events: events})

	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, uuid.New(), "")))
	assert.Empty(t, f.notifier.emails)
	assert.Len(t, f.dlq.reasons, 1)
}

func TestExecuteMalformedMessageGoesToDLQ(t *testing.T) {
	f := newFixture(t, &scriptedRunner{})

	require.NoError(t, f.uc.Execute(context.Background(), []byte("{not json")))

	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "unmarshal_error")
	assert.Empty(t, f.progress.messages)
}
