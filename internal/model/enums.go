package model

import "github.com/lessonforge/api/internal/aggregate"

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCanceled
}

// RecordStatus maps a job status onto the generation record status used by
// reporting.
func (s JobStatus) RecordStatus() aggregate.Status {
	switch s {
	case JobStatusQueued:
		return aggregate.StatusQueued
	case JobStatusRunning:
		return aggregate.StatusProcessing
	case JobStatusSucceeded:
		return aggregate.StatusSucceeded
	case JobStatusFailed:
		return aggregate.StatusFailed
	case JobStatusCanceled:
		return aggregate.StatusCancelled
	}
	return aggregate.StatusQueued
}

// Report grouping keys
type GroupBy string

const (
	GroupByNone    GroupBy = ""
	GroupByPartner GroupBy = "partner"
	GroupByUser    GroupBy = "user"
	GroupByDay     GroupBy = "day"
)
