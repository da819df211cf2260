package model

import (
	"encoding/json"
	"time"

	"github.com/lessonforge/api/internal/timing"
)

// GenerationStartRequest submits a manifest for rendering.
type GenerationStartRequest struct {
	Manifest  json.RawMessage `json:"manifest" validate:"required"`
	PartnerID string          `json:"partnerId" validate:"omitempty,max=64"`
}

type GenerationStartResponse struct {
	JobID             string    `json:"jobId"`
	VideoID           string    `json:"videoId"`
	Status            JobStatus `json:"status"`
	EstimatedDuration float64   `json:"estimatedDuration"` // seconds of video
	Warnings          []string  `json:"warnings"`
	CreatedAt         time.Time `json:"createdAt"`
}

type GenerationStatusResponse struct {
	JobID       string     `json:"jobId"`
	VideoID     string     `json:"videoId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// GenerationResult is stored on the job once rendering succeeds.
type GenerationResult struct {
	JobID       string         `json:"jobId"`
	VideoID     string         `json:"videoId"`
	RenderID    string         `json:"renderId"`
	DownloadURL string         `json:"downloadUrl"`
	ManifestURL string         `json:"manifestUrl,omitempty"`
	Duration    float64        `json:"duration"`
	Timing      *timing.Record `json:"timing,omitempty"`
	CompletedAt time.Time      `json:"completedAt"`
}

type GenerationCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}
