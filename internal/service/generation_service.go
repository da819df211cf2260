package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lessonforge/api/internal/aggregate"
	"github.com/lessonforge/api/internal/client"
	"github.com/lessonforge/api/internal/log"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/metrics"
	"github.com/lessonforge/api/internal/model"
)

const (
	TaskTypeGeneration = "generation:process"
	QueueGeneration    = "generation"

	jobTTL = 24 * time.Hour
)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RecordStore persists generation records for reporting.
type RecordStore interface {
	Insert(ctx context.Context, videoID string, r aggregate.Record) error
	SetStatus(ctx context.Context, id string, status aggregate.Status) error
	Complete(ctx context.Context, id string, status aggregate.Status, completedAt time.Time, videoSeconds float64) error
	Delete(ctx context.Context, id string) error
}

// GenerationService handles generation job management
type GenerationService struct {
	redis      *redis.Client
	queue      TaskEnqueuer
	records    RecordStore
	archive    client.ObjectStore
	validator  *manifest.Validator
	thresholds manifest.Thresholds
	logger     zerolog.Logger
	now        func() time.Time
}

func NewGenerationService(
	redisClient *redis.Client,
	queue TaskEnqueuer,
	records RecordStore,
	archive client.ObjectStore,
	validator *manifest.Validator,
	thresholds manifest.Thresholds,
) *GenerationService {
	return &GenerationService{
		redis:      redisClient,
		queue:      queue,
		records:    records,
		archive:    archive,
		validator:  validator,
		thresholds: thresholds,
		logger:     log.WithComponent("generation"),
		now:        time.Now,
	}
}

// StartGeneration validates the manifest, archives it and queues a render.
func (s *GenerationService) StartGeneration(ctx context.Context, userID string, req *model.GenerationStartRequest) (*model.GenerationStartResponse, error) {
	res := s.validator.ValidateJSON(req.Manifest)
	record(false, res)
	if !res.Valid {
		return nil, &ManifestError{Result: res}
	}
	m := res.Manifest

	jobID := uuid.New().String()
	now := s.now().UTC()
	logger := s.logger.With().Str(log.FieldJobID, jobID).Str(log.FieldVideoID, m.VideoID).Logger()

	// The archived copy is the normalised manifest, defaults filled in.
	normalized, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	key := client.ManifestKey(m.VideoID, jobID)
	if err := s.archive.Put(ctx, key, normalized, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to archive manifest: %w", err)
	}

	payload := &model.GenerationJobPayload{
		VideoID:     m.VideoID,
		PartnerID:   req.PartnerID,
		UserID:      userID,
		ManifestKey: key,
		Manifest:    normalized,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeGeneration,
		Status:    model.JobStatusQueued,
		UserID:    userID,
		PartnerID: req.PartnerID,
		VideoID:   m.VideoID,
		Payload:   payloadBytes,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if err := s.records.Insert(ctx, m.VideoID, aggregate.Record{
		ID:        jobID,
		PartnerID: req.PartnerID,
		UserID:    userID,
		Status:    aggregate.StatusQueued,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to record generation: %w", err)
	}

	task, err := newGenerationTask(jobID, payloadBytes)
	if err != nil {
		s.discard(ctx, jobID)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	_, err = s.queue.Enqueue(task,
		asynq.Queue(QueueGeneration),
		asynq.MaxRetry(3),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		s.discard(ctx, jobID)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	logger.Info().Int("shots", len(m.Shots)).Msg("generation queued")

	return &model.GenerationStartResponse{
		JobID:             jobID,
		VideoID:           m.VideoID,
		Status:            model.JobStatusQueued,
		EstimatedDuration: manifest.EstimateDuration(m, s.thresholds.SpeechWordsPerMin),
		Warnings:          res.Warnings,
		CreatedAt:         now,
	}, nil
}

// GetStatus returns the current status of a generation job
func (s *GenerationService) GetStatus(ctx context.Context, jobID string) (*model.GenerationStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.GenerationStatusResponse{
		JobID:       job.ID,
		VideoID:     job.VideoID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		RetryCount:  job.RetryCount,
	}, nil
}

// GetResult returns the result of a succeeded job.
func (s *GenerationService) GetResult(ctx context.Context, jobID string) (*model.GenerationResult, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, ErrJobNotCompleted
	}

	var result model.GenerationResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// CancelGeneration cancels a queued or running job. The worker notices the
// cancellation at its next step.
func (s *GenerationService) CancelGeneration(ctx context.Context, jobID string) (*model.GenerationCancelResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return nil, ErrJobFinished
	}

	now := s.now().UTC()
	job.Status = model.JobStatusCanceled
	job.CompletedAt = &now
	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}
	status := job.Status.RecordStatus()
	if err := s.records.Complete(ctx, jobID, status, now, 0); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldJobID, jobID).Msg("failed to update generation record")
	}
	metrics.RecordGeneration(string(status), now.Sub(job.CreatedAt).Seconds())

	return &model.GenerationCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

// IsCanceled reports whether the job was cancelled by the user.
func (s *GenerationService) IsCanceled(ctx context.Context, jobID string) (bool, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.Status == model.JobStatusCanceled, nil
}

// UpdateJobProgress updates job progress (called by worker)
func (s *GenerationService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobFinished
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := s.now().UTC()
		job.StartedAt = &now
		if err := s.records.SetStatus(ctx, jobID, job.Status.RecordStatus()); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldJobID, jobID).Msg("failed to update generation record")
		}
	}

	return s.saveJob(ctx, job)
}

// MarkRetry records that the worker is on its n-th retry of the job.
func (s *GenerationService) MarkRetry(ctx context.Context, jobID string, n int) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobFinished
	}
	job.RetryCount = n
	job.Error = nil
	return s.saveJob(ctx, job)
}

// CompleteJob marks job as succeeded (called by worker)
func (s *GenerationService) CompleteJob(ctx context.Context, jobID string, result *model.GenerationResult) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobFinished
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.CurrentStep = ""
	job.Result = resultBytes
	job.CompletedAt = &now
	if err := s.saveJob(ctx, job); err != nil {
		return err
	}

	status := job.Status.RecordStatus()
	if err := s.records.Complete(ctx, jobID, status, now, result.Duration); err != nil {
		return fmt.Errorf("failed to update generation record: %w", err)
	}
	metrics.RecordGeneration(string(status), now.Sub(job.CreatedAt).Seconds())
	return nil
}

// FailJob marks job as failed (called by worker)
func (s *GenerationService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobFinished
	}

	now := s.now().UTC()
	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	job.CompletedAt = &now
	if err := s.saveJob(ctx, job); err != nil {
		return err
	}

	status := job.Status.RecordStatus()
	if err := s.records.Complete(ctx, jobID, status, now, 0); err != nil {
		return fmt.Errorf("failed to update generation record: %w", err)
	}
	metrics.RecordGeneration(string(status), now.Sub(job.CreatedAt).Seconds())
	return nil
}

// discard removes the job and its record when the task never reached the
// queue, so reports do not count a generation that cannot run.
func (s *GenerationService) discard(ctx context.Context, jobID string) {
	if err := s.redis.Del(ctx, jobKey(jobID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldJobID, jobID).Msg("failed to delete job")
	}
	if err := s.records.Delete(ctx, jobID); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldJobID, jobID).Msg("failed to delete generation record")
	}
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func (s *GenerationService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *GenerationService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GenerationTask is the asynq payload of TaskTypeGeneration.
type GenerationTask struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

func newGenerationTask(jobID string, payload []byte) (*asynq.Task, error) {
	data, err := json.Marshal(GenerationTask{JobID: jobID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGeneration, data), nil
}
