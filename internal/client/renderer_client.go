package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/lessonforge/api/internal/config"
	"github.com/lessonforge/api/internal/log"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/timing"
)

// Renderer submits manifests to the external rendering service.
type Renderer interface {
	SubmitRender(ctx context.Context, req *RenderRequest) (*RenderJob, error)
	GetRender(ctx context.Context, renderID string) (*RenderStatus, error)
	GetNarration(ctx context.Context, renderID string) (*timing.Narration, error)
	IsConfigured() bool
}

// RendererClient implements Renderer over the renderer's HTTP JSON API.
type RendererClient struct {
	api jsonAPI
}

type RenderRequest struct {
	JobID    string             `json:"job_id"`
	Manifest *manifest.Manifest `json:"manifest"`
}

type RenderJob struct {
	RenderID string `json:"render_id"`
	Status   string `json:"status"`
}

// RenderStatus is the renderer's view of a render.
type RenderStatus struct {
	RenderID    string  `json:"render_id"`
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	DownloadURL string  `json:"download_url,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Done reports whether the render reached a terminal state.
func (s *RenderStatus) Done() (bool, error) {
	switch s.Status {
	case "completed", "succeeded":
		return true, nil
	case "failed", "error":
		msg := s.Error
		if msg == "" {
			msg = s.Status
		}
		return true, fmt.Errorf("render failed: %s", msg)
	}
	return false, nil
}

func NewRendererClient(cfg *config.RendererConfig) *RendererClient {
	return &RendererClient{
		api: newJSONAPI("renderer", cfg.BaseURL, cfg.APIKey, 60*time.Second, log.WithComponent("renderer")),
	}
}

func (c *RendererClient) SubmitRender(ctx context.Context, req *RenderRequest) (*RenderJob, error) {
	var result RenderJob
	if err := c.api.post(ctx, "/v1/renders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RendererClient) GetRender(ctx context.Context, renderID string) (*RenderStatus, error) {
	var result RenderStatus
	if err := c.api.get(ctx, "/v1/renders/"+url.PathEscape(renderID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetNarration fetches word-level timing of the rendered voiceover.
func (c *RendererClient) GetNarration(ctx context.Context, renderID string) (*timing.Narration, error) {
	var result timing.Narration
	if err := c.api.get(ctx, "/v1/renders/"+url.PathEscape(renderID)+"/narration", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *RendererClient) IsConfigured() bool {
	return c.api.baseURL != "" && c.api.apiKey != ""
}

// PollRender polls until the render is terminal, the context ends, or maxWait
// elapses. onProgress is called after every successful poll.
func PollRender(ctx context.Context, r Renderer, renderID string, interval, maxWait time.Duration, onProgress func(*RenderStatus)) (*RenderStatus, error) {
	logger := log.WithContext(ctx, log.WithComponent("renderer"))
	deadline := time.Now().Add(maxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		status, err := r.GetRender(ctx, renderID)
		if err != nil {
			return nil, err
		}
		logger.Debug().Int("attempt", attempt).Str(log.FieldRenderID, renderID).Str("status", status.Status).Msg("poll render")
		if onProgress != nil {
			onProgress(status)
		}

		if done, err := status.Done(); done {
			if err != nil {
				return nil, err
			}
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("render timed out after %v", maxWait)
}
