package model

import (
	"encoding/json"
	"time"
)

// Job represents a background job in the system
type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	UserID      string     `json:"userId,omitempty"`
	PartnerID   string     `json:"partnerId,omitempty"`
	VideoID     string     `json:"videoId"`
	Payload     []byte     `json:"payload,omitempty"`
	Result      []byte     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// Job types
const (
	JobTypeGeneration = "generation"
)

// GenerationJobPayload is the task payload handed to the generation worker.
// Manifest is the validated manifest as submitted.
type GenerationJobPayload struct {
	VideoID     string          `json:"videoId"`
	PartnerID   string          `json:"partnerId,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	ManifestKey string          `json:"manifestKey"`
	Manifest    json.RawMessage `json:"manifest"`
}
