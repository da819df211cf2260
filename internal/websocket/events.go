package websocket

import "github.com/lessonforge/api/internal/model"

// EventType discriminates the frames exchanged on /ws/jobs/:jobId.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
	EventPing     EventType = "ping"
	EventPong     EventType = "pong"
)

// Event is the single frame shape sent to subscribers. Only the fields that
// belong to Type are populated.
type Event struct {
	Type        EventType               `json:"type"`
	JobID       string                  `json:"jobId,omitempty"`
	Progress    int                     `json:"progress,omitempty"`
	Status      model.JobStatus         `json:"status,omitempty"`
	CurrentStep string                  `json:"currentStep,omitempty"`
	Result      *model.GenerationResult `json:"result,omitempty"`
	Error       *ErrorPayload           `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
