package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lessonforge/api/internal/analytics"
	"github.com/lessonforge/api/internal/client"
	"github.com/lessonforge/api/internal/config"
	"github.com/lessonforge/api/internal/log"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/model"
	"github.com/lessonforge/api/internal/service"
	"github.com/lessonforge/api/internal/timing"
	"github.com/lessonforge/api/internal/websocket"
)

const manifestURLExpiry = 24 * time.Hour

var errCanceled = errors.New("generation canceled")

// JobTracker is the job bookkeeping the worker needs; *service.GenerationService
// implements it.
type JobTracker interface {
	UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error
	CompleteJob(ctx context.Context, jobID string, result *model.GenerationResult) error
	FailJob(ctx context.Context, jobID string, errMsg string) error
	MarkRetry(ctx context.Context, jobID string, n int) error
	IsCanceled(ctx context.Context, jobID string) (bool, error)
}

// GenerationWorker processes generation jobs
type GenerationWorker struct {
	jobs         JobTracker
	renderer     client.Renderer
	archive      client.ObjectStore
	analyzer     *timing.Analyzer
	hub          websocket.Broadcaster
	sink         analytics.Sink
	pollInterval time.Duration
	maxWait      time.Duration
	wordsPerMin  float64
	mockStep     time.Duration
	logger       zerolog.Logger
}

func NewGenerationWorker(
	jobs JobTracker,
	renderer client.Renderer,
	archive client.ObjectStore,
	analyzer *timing.Analyzer,
	hub websocket.Broadcaster,
	sink analytics.Sink,
	renderCfg *config.RendererConfig,
	wordsPerMin float64,
) *GenerationWorker {
	return &GenerationWorker{
		jobs:         jobs,
		renderer:     renderer,
		archive:      archive,
		analyzer:     analyzer,
		hub:          hub,
		sink:         sink,
		pollInterval: renderCfg.PollInterval,
		maxWait:      renderCfg.MaxWait,
		wordsPerMin:  wordsPerMin,
		mockStep:     renderCfg.PollInterval,
		logger:       log.WithComponent("worker"),
	}
}

// ProcessTask handles generation task processing
func (w *GenerationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var task service.GenerationTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := task.JobID
	ctx = log.ContextWithJobID(ctx, jobID)
	logger := log.WithContext(ctx, w.logger)

	var payload model.GenerationJobPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal generation payload: %v: %w", err, asynq.SkipRetry)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(payload.Manifest, &m); err != nil {
		w.failJob(ctx, jobID, "Invalid manifest payload")
		return fmt.Errorf("failed to unmarshal manifest: %v: %w", err, asynq.SkipRetry)
	}

	if canceled, err := w.jobs.IsCanceled(ctx, jobID); err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	} else if canceled {
		logger.Info().Msg("job canceled before start")
		return nil
	}
	if n, ok := asynq.GetRetryCount(ctx); ok && n > 0 {
		if err := w.jobs.MarkRetry(ctx, jobID, n); err != nil {
			logger.Warn().Err(err).Msg("failed to record retry")
		}
	}

	tracker := analytics.NewTracker(jobID, w.sink)
	tracker.Start(map[string]any{
		"video_id":   payload.VideoID,
		"partner_id": payload.PartnerID,
		"shots":      len(m.Shots),
	})
	logger.Info().Str(log.FieldVideoID, payload.VideoID).Msg("starting generation")

	var (
		result *model.GenerationResult
		err    error
	)
	if w.renderer == nil || !w.renderer.IsConfigured() {
		result, err = w.processWithMock(ctx, jobID, &payload, &m, tracker)
	} else {
		result, err = w.processWithRenderer(ctx, jobID, &payload, &m, tracker)
	}

	if err == nil {
		err = w.jobs.CompleteJob(ctx, jobID, result)
		if errors.Is(err, service.ErrJobFinished) {
			err = errCanceled
		}
	}

	switch {
	case errors.Is(err, errCanceled):
		logger.Info().Msg("generation canceled")
		w.stopTracker(ctx, tracker, "canceled")
		return nil

	case err != nil:
		if !finalAttempt(ctx) {
			logger.Warn().Err(err).Msg("generation attempt failed, will retry")
			tracker.Track("attempt.failed", map[string]any{"error": err.Error()})
			w.stopTracker(ctx, tracker, "retrying")
			return err
		}
		w.failJob(ctx, jobID, err.Error())
		w.stopTracker(ctx, tracker, "failed")
		return err
	}

	w.hub.BroadcastComplete(jobID, result)
	w.stopTracker(ctx, tracker, "succeeded")
	logger.Info().Float64("duration", result.Duration).Msg("generation completed")
	return nil
}

// processWithRenderer submits the manifest to the renderer, waits for the
// video and analyzes the narration it produced.
func (w *GenerationWorker) processWithRenderer(ctx context.Context, jobID string, payload *model.GenerationJobPayload, m *manifest.Manifest, tracker *analytics.Tracker) (*model.GenerationResult, error) {
	if err := w.step(ctx, jobID, 5, "Submitting manifest..."); err != nil {
		return nil, err
	}
	job, err := w.renderer.SubmitRender(ctx, &client.RenderRequest{JobID: jobID, Manifest: m})
	if err != nil {
		return nil, fmt.Errorf("render submission failed: %w", err)
	}
	tracker.Track("render.submitted", map[string]any{"render_id": job.RenderID})

	if err := w.step(ctx, jobID, 10, "Rendering..."); err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	canceled := false
	status, err := client.PollRender(pollCtx, w.renderer, job.RenderID, w.pollInterval, w.maxWait, func(s *client.RenderStatus) {
		progress := 10 + s.Progress*70/100
		if err := w.step(ctx, jobID, progress, "Rendering..."); errors.Is(err, errCanceled) {
			canceled = true
			cancel()
		}
	})
	if canceled {
		return nil, errCanceled
	}
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}
	tracker.Track("render.completed", map[string]any{"render_id": job.RenderID, "duration": status.Duration})

	if err := w.step(ctx, jobID, 85, "Collecting narration timing..."); err != nil {
		return nil, err
	}

	var (
		narration   *timing.Narration
		manifestURL string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := w.renderer.GetNarration(gctx, job.RenderID)
		if err != nil {
			return fmt.Errorf("narration fetch failed: %w", err)
		}
		narration = n
		return nil
	})
	g.Go(func() error {
		url, err := w.archive.SignedURL(gctx, payload.ManifestKey, manifestURLExpiry)
		if err != nil {
			return fmt.Errorf("manifest url failed: %w", err)
		}
		manifestURL = url
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := w.step(ctx, jobID, 95, "Finalizing..."); err != nil {
		return nil, err
	}
	analysis := w.analyze(ctx, m, narration, tracker)

	duration := status.Duration
	if duration == 0 && analysis != nil {
		duration = analysis.TotalDuration
	}
	return &model.GenerationResult{
		JobID:       jobID,
		VideoID:     payload.VideoID,
		RenderID:    job.RenderID,
		DownloadURL: status.DownloadURL,
		ManifestURL: manifestURL,
		Duration:    duration,
		Timing:      analysis,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// processWithMock walks through the render steps with estimated narration,
// for development without a renderer. Steps advance once per poll interval.
func (w *GenerationWorker) processWithMock(ctx context.Context, jobID string, payload *model.GenerationJobPayload, m *manifest.Manifest, tracker *analytics.Tracker) (*model.GenerationResult, error) {
	steps := []struct {
		progress int
		step     string
	}{
		{10, "Preparing scenes..."},
		{35, "Rendering shots..."},
		{60, "Synthesizing narration..."},
		{80, "Muxing audio..."},
		{95, "Finalizing..."},
	}

	for _, s := range steps {
		if err := w.step(ctx, jobID, s.progress, s.step); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.mockStep):
		}
	}

	analysis := w.analyze(ctx, m, timing.EstimateNarration(m, w.wordsPerMin), tracker)
	manifestURL, err := w.archive.SignedURL(ctx, payload.ManifestKey, manifestURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("manifest url failed: %w", err)
	}

	result := &model.GenerationResult{
		JobID:       jobID,
		VideoID:     payload.VideoID,
		RenderID:    "mock-" + jobID,
		DownloadURL: fmt.Sprintf("https://cdn.lessonforge.dev/videos/%s/%s.mp4", payload.VideoID, jobID),
		ManifestURL: manifestURL,
		Timing:      analysis,
		CompletedAt: time.Now().UTC(),
	}
	if analysis != nil {
		result.Duration = analysis.TotalDuration
	}
	return result, nil
}

// analyze returns nil when the narration cannot be analyzed; the video
// itself is still delivered.
func (w *GenerationWorker) analyze(ctx context.Context, m *manifest.Manifest, n *timing.Narration, tracker *analytics.Tracker) *timing.Record {
	rec, err := w.analyzer.Analyze(m, n)
	if err != nil {
		logger := log.WithContext(ctx, w.logger)
		logger.Warn().Err(err).Msg("timing analysis failed")
		tracker.Track("timing.failed", map[string]any{"error": err.Error()})
		return nil
	}
	tracker.Track("timing.analyzed", map[string]any{
		"total_duration": rec.TotalDuration,
		"pace":           string(rec.Pace),
		"warnings":       len(rec.Warnings),
	})
	return rec
}

// step records progress and reports errCanceled once the job was cancelled.
func (w *GenerationWorker) step(ctx context.Context, jobID string, progress int, step string) error {
	if err := w.jobs.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		if errors.Is(err, service.ErrJobFinished) {
			return errCanceled
		}
		logger := log.WithContext(ctx, w.logger)
		logger.Warn().Err(err).Msg("failed to update progress")
	}
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, step)
	return nil
}

func (w *GenerationWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.jobs.FailJob(ctx, jobID, errMsg); err != nil {
		logger := log.WithContext(ctx, w.logger)
		logger.Error().Err(err).Msg("failed to mark job as failed")
	}
	w.hub.BroadcastError(jobID, "GENERATION_FAILED", errMsg)
}

func (w *GenerationWorker) stopTracker(ctx context.Context, tracker *analytics.Tracker, outcome string) {
	if err := tracker.Stop(ctx, outcome); err != nil {
		logger := log.WithContext(ctx, w.logger)
		logger.Warn().Err(err).Msg("failed to flush analytics")
	}
}

// finalAttempt is true when asynq will not retry the task again. Outside an
// asynq handler every attempt is final.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
