package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonforge/api/internal/aggregate"
	"github.com/lessonforge/api/internal/client"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/model"
	"github.com/lessonforge/api/internal/store"
	"github.com/lessonforge/api/internal/timing"
)

const validManifest = `{
	"video_id": "v1",
	"templates": [{"id": "t", "type": "Text", "content": "Hi"}],
	"shots": [
		{"voiceover": "Hello there world", "actions": [{"type": "Write", "template_id": "t", "duration": 2}]},
		{"voiceover": "", "duration": 1.5}
	]
}`

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t", Queue: QueueGeneration}, nil
}

type fixture struct {
	svc     *GenerationService
	queue   *fakeQueue
	records *store.GenerationStore
	archive *client.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	records, err := store.Open(filepath.Join(t.TempDir(), "gen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })

	f := &fixture{queue: &fakeQueue{}, records: records, archive: client.NewMemoryStore()}
	th := manifest.DefaultThresholds()
	f.svc = NewGenerationService(rdb, f.queue, records, f.archive, manifest.NewValidator(th), th)
	return f
}

func (f *fixture) start(t *testing.T) *model.GenerationStartResponse {
	t.Helper()
	resp, err := f.svc.StartGeneration(context.Background(), "user-1", &model.GenerationStartRequest{
		Manifest:  json.RawMessage(validManifest),
		PartnerID: "partner-1",
	})
	require.NoError(t, err)
	return resp
}

func TestStartGenerationQueuesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.start(t)

	assert.Equal(t, model.JobStatusQueued, resp.Status)
	assert.Equal(t, "v1", resp.VideoID)
	assert.InDelta(t, 3.5, resp.EstimatedDuration, 1e-9)
	assert.NotNil(t, resp.Warnings)

	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, TaskTypeGeneration, f.queue.tasks[0].Type())
	var task GenerationTask
	require.NoError(t, json.Unmarshal(f.queue.tasks[0].Payload(), &task))
	assert.Equal(t, resp.JobID, task.JobID)
	var payload model.GenerationJobPayload
	require.NoError(t, json.Unmarshal(task.Payload, &payload))
	assert.Equal(t, "partner-1", payload.PartnerID)
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, client.ManifestKey("v1", resp.JobID), payload.ManifestKey)

	archived, err := f.archive.Get(ctx, payload.ManifestKey)
	require.NoError(t, err)
	var m manifest.Manifest
	require.NoError(t, json.Unmarshal(archived, &m))
	assert.Equal(t, "v1", m.VideoID)
	assert.NotNil(t, m.Shots[1].Actions, "defaults are archived")

	rec, err := f.records.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusQueued, rec.Status)
	assert.Equal(t, "partner-1", rec.PartnerID)

	status, err := f.svc.GetStatus(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, status.Status)
}

func TestStartGenerationRejectsInvalidManifest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StartGeneration(context.Background(), "u", &model.GenerationStartRequest{
		Manifest: json.RawMessage(`{"video_id": "v", "shots": [{"voiceover": ""}]}`),
	})

	require.ErrorIs(t, err, ErrManifestInvalid)
	var merr *ManifestError
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Result.Errors, 1)
	assert.Equal(t, manifest.CategoryContent, merr.Result.Errors[0].Category)
	assert.Empty(t, f.queue.tasks)
}

func TestStartGenerationEnqueueFailure(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("redis down")

	_, err := f.svc.StartGeneration(context.Background(), "u", &model.GenerationStartRequest{Manifest: json.RawMessage(validManifest)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to enqueue task")

	records, err := f.records.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records, "a start that never reached the queue leaves no record")

	keys, err := f.svc.redis.Keys(context.Background(), "job:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestJobLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobID := f.start(t).JobID

	_, err := f.svc.GetResult(ctx, jobID)
	assert.ErrorIs(t, err, ErrJobNotCompleted)

	require.NoError(t, f.svc.UpdateJobProgress(ctx, jobID, 40, "Rendering"))
	status, err := f.svc.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, status.Status)
	assert.Equal(t, 40, status.Progress)
	assert.NotNil(t, status.StartedAt)
	rec, err := f.records.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusProcessing, rec.Status)

	require.NoError(t, f.svc.CompleteJob(ctx, jobID, &model.GenerationResult{JobID: jobID, VideoID: "v1", Duration: 33}))

	result, err := f.svc.GetResult(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 33.0, result.Duration)
	rec, err = f.records.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusSucceeded, rec.Status)
	assert.Equal(t, 33.0, rec.VideoSeconds)
	assert.NotNil(t, rec.CompletedAt)

	_, err = f.svc.CancelGeneration(ctx, jobID)
	assert.ErrorIs(t, err, ErrJobFinished)
	assert.ErrorIs(t, f.svc.FailJob(ctx, jobID, "late"), ErrJobFinished)
}

func TestCancelGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobID := f.start(t).JobID

	resp, err := f.svc.CancelGeneration(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	canceled, err := f.svc.IsCanceled(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, canceled)
	assert.ErrorIs(t, f.svc.UpdateJobProgress(ctx, jobID, 10, "x"), ErrJobFinished)

	rec, err := f.records.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, aggregate.StatusCancelled, rec.Status)
}

func TestFailJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobID := f.start(t).JobID

	require.NoError(t, f.svc.FailJob(ctx, jobID, "renderer exploded"))

	status, err := f.svc.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, status.Status)
	require.NotNil(t, status.Error)
	assert.Equal(t, "renderer exploded", *status.Error)
}

func TestMarkRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobID := f.start(t).JobID

	require.NoError(t, f.svc.MarkRetry(ctx, jobID, 2))

	status, err := f.svc.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.RetryCount)

	require.NoError(t, f.svc.FailJob(ctx, jobID, "gave up"))
	assert.ErrorIs(t, f.svc.MarkRetry(ctx, jobID, 3), ErrJobFinished)
}

func TestUnknownJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

type fakeSpeech struct {
	configured bool
	narration  *timing.Narration
	err        error
	calls      int
}

func (s *fakeSpeech) Timings(context.Context, *manifest.Manifest) (*timing.Narration, error) {
	s.calls++
	return s.narration, s.err
}

func (s *fakeSpeech) IsConfigured() bool { return s.configured }

func newManifestService(speech client.NarrationSource) *ManifestService {
	th := manifest.DefaultThresholds()
	return NewManifestService(manifest.NewValidator(th), timing.NewAnalyzer(timing.DefaultThresholds()), speech, th)
}

func TestValidateReturnsResultEitherWay(t *testing.T) {
	svc := newManifestService(nil)
	ctx := context.Background()

	res := svc.Validate(ctx, []byte(validManifest), false)
	assert.True(t, res.Valid)

	res = svc.Validate(ctx, []byte(`{"video_id": 3}`), false)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)

	res = svc.Validate(ctx, []byte(`{"video_id": "v"}`), true)
	assert.True(t, res.Valid, "partial mode tolerates missing shots")
}

func TestAnalyzeWithSuppliedNarration(t *testing.T) {
	speech := &fakeSpeech{configured: true}
	svc := newManifestService(speech)

	rec, err := svc.Analyze(context.Background(), []byte(validManifest), &timing.Narration{Shots: []timing.ShotAudio{
		{ShotIndex: 0, AudioDuration: 3, Words: []timing.Word{{Word: "Hello", Start: 0, End: 0.5}}},
	}})

	require.NoError(t, err)
	assert.InDelta(t, 4.5, rec.TotalDuration, 1e-9)
	assert.Zero(t, speech.calls)
}

func TestAnalyzeFetchesNarrationFromSpeech(t *testing.T) {
	speech := &fakeSpeech{configured: true, narration: &timing.Narration{Shots: []timing.ShotAudio{{ShotIndex: 0, AudioDuration: 1}}}}
	svc := newManifestService(speech)

	rec, err := svc.Analyze(context.Background(), []byte(validManifest), nil)

	require.NoError(t, err)
	assert.Equal(t, 1, speech.calls)
	assert.InDelta(t, 2, rec.Shots[0].Duration, 1e-9, "actions outlast the narration")
}

func TestAnalyzeEstimatesWithoutSpeechService(t *testing.T) {
	svc := newManifestService(&fakeSpeech{})

	rec, err := svc.Analyze(context.Background(), []byte(validManifest), nil)

	require.NoError(t, err)
	assert.Equal(t, 3, rec.TotalWords)
}

func TestAnalyzeErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newManifestService(nil).Analyze(ctx, []byte(`{}`), nil)
	assert.ErrorIs(t, err, ErrManifestInvalid)

	_, err = newManifestService(&fakeSpeech{configured: true, err: errors.New("timeout")}).Analyze(ctx, []byte(validManifest), nil)
	assert.ErrorIs(t, err, ErrNarrationUnavailable)

	_, err = newManifestService(nil).Analyze(ctx, []byte(validManifest), &timing.Narration{})
	assert.ErrorIs(t, err, timing.ErrInvalidNarration)
}
