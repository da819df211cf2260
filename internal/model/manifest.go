package model

import (
	"encoding/json"

	"github.com/lessonforge/api/internal/timing"
)

// AnalyzeRequest carries a manifest and, optionally, its narration timing.
// Without narration the speech service is asked for it.
type AnalyzeRequest struct {
	Manifest  json.RawMessage   `json:"manifest" validate:"required"`
	Narration *timing.Narration `json:"narration,omitempty"`
}

// ReportQuery holds the query parameters of the reports endpoint.
type ReportQuery struct {
	From      string  `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string  `query:"to" validate:"omitempty,datetime=2006-01-02"`
	PartnerID string  `query:"partnerId" validate:"omitempty,max=64"`
	UserID    string  `query:"userId" validate:"omitempty,max=64"`
	GroupBy   GroupBy `query:"groupBy" validate:"omitempty,oneof=partner user day"`
}

// LibraryEntry summarises one starter manifest.
type LibraryEntry struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	VideoID     string  `json:"videoId"`
	Shots       int     `json:"shots"`
	Estimated   float64 `json:"estimatedDuration"`
}
