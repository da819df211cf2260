package client

import (
	"context"
	"time"

	"github.com/lessonforge/api/internal/config"
	"github.com/lessonforge/api/internal/log"
	"github.com/lessonforge/api/internal/manifest"
	"github.com/lessonforge/api/internal/timing"
)

// NarrationSource produces word-level narration timing for a manifest.
type NarrationSource interface {
	Timings(ctx context.Context, m *manifest.Manifest) (*timing.Narration, error)
	IsConfigured() bool
}

// SpeechClient talks to the speech synthesis service.
type SpeechClient struct {
	api     jsonAPI
	timeout time.Duration
}

type timingsRequest struct {
	VideoID string         `json:"video_id"`
	Shots   []voiceoverReq `json:"shots"`
}

type voiceoverReq struct {
	ShotIndex int    `json:"shot_index"`
	Text      string `json:"text"`
}

func NewSpeechClient(cfg *config.SpeechConfig) *SpeechClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	return &SpeechClient{
		api:     newJSONAPI("speech", cfg.ServiceURL, "", timeout, log.WithComponent("speech")),
		timeout: timeout,
	}
}

// Timings requests narration timing for every voiced shot. The call is bounded
// by the configured timeout in addition to ctx.
func (c *SpeechClient) Timings(ctx context.Context, m *manifest.Manifest) (*timing.Narration, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := timingsRequest{VideoID: m.VideoID, Shots: []voiceoverReq{}}
	for i, s := range m.Shots {
		if s.IsSilent() {
			continue
		}
		req.Shots = append(req.Shots, voiceoverReq{ShotIndex: i, Text: s.Voiceover})
	}

	var result timing.Narration
	if err := c.api.post(ctx, "/timings", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the speech service is available
func (c *SpeechClient) HealthCheck(ctx context.Context) error {
	return c.api.health(ctx)
}

// IsConfigured returns true if the client has valid configuration
func (c *SpeechClient) IsConfigured() bool {
	return c.api.baseURL != ""
}
