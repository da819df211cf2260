// Package analytics records per-job lifecycle events. A Tracker is created
// for each generation job and flushed to a Sink when the job stops.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotStarted = errors.New("tracker not started")

const (
	EventStarted  = "job.started"
	EventFinished = "job.finished"
)

// Event is a single timestamped analytics entry.
type Event struct {
	JobID string         `json:"job_id"`
	Name  string         `json:"name"`
	At    time.Time      `json:"at"`
	Props map[string]any `json:"props,omitempty"`
}

// Sink persists a batch of events for one job.
type Sink interface {
	Write(ctx context.Context, jobID string, events []Event) error
}

// Tracker buffers events for one job between Start and Stop.
type Tracker struct {
	jobID string
	sink  Sink
	now   func() time.Time

	mu      sync.Mutex
	started time.Time
	stopped bool
	events  []Event
}

func NewTracker(jobID string, sink Sink) *Tracker {
	return &Tracker{jobID: jobID, sink: sink, now: time.Now}
}

// Start begins the session. Calling it twice is a no-op.
func (t *Tracker) Start(props map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started.IsZero() {
		return
	}
	t.started = t.now()
	t.events = append(t.events, Event{JobID: t.jobID, Name: EventStarted, At: t.started, Props: props})
}

// Track appends an event. Events outside Start/Stop are dropped.
func (t *Tracker) Track(name string, props map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started.IsZero() || t.stopped {
		return
	}
	t.events = append(t.events, Event{JobID: t.jobID, Name: name, At: t.now(), Props: props})
}

// Stop closes the session with an outcome and flushes buffered events.
func (t *Tracker) Stop(ctx context.Context, outcome string) error {
	t.mu.Lock()
	if t.started.IsZero() {
		t.mu.Unlock()
		return ErrNotStarted
	}
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	at := t.now()
	t.events = append(t.events, Event{
		JobID: t.jobID,
		Name:  EventFinished,
		At:    at,
		Props: map[string]any{"outcome": outcome, "elapsed_seconds": at.Sub(t.started).Seconds()},
	})
	events := t.events
	t.events = nil
	t.mu.Unlock()

	if t.sink == nil {
		return nil
	}
	return t.sink.Write(ctx, t.jobID, events)
}
