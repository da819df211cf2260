package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonforge/api/internal/aggregate"
	"github.com/lessonforge/api/internal/model"
	"github.com/lessonforge/api/internal/store"
)

type fakeLister struct {
	records []aggregate.Record
	filter  store.Filter
}

func (l *fakeLister) List(_ context.Context, f store.Filter) ([]aggregate.Record, error) {
	l.filter = f
	return l.records, nil
}

func TestSummaryTranslatesQuery(t *testing.T) {
	done := time.Date(2026, 5, 2, 10, 1, 0, 0, time.UTC)
	lister := &fakeLister{records: []aggregate.Record{
		{ID: "a", PartnerID: "p1", UserID: "u1", Status: aggregate.StatusSucceeded, CreatedAt: done.Add(-time.Minute), CompletedAt: &done, VideoSeconds: 60},
		{ID: "b", PartnerID: "p1", UserID: "u2", Status: aggregate.StatusFailed, CreatedAt: done},
	}}
	svc := NewReportService(lister)

	rep, err := svc.Summary(context.Background(), &model.ReportQuery{
		From: "2026-05-01", To: "2026-05-02", PartnerID: "p1", GroupBy: model.GroupByUser,
	})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), lister.filter.From)
	assert.Equal(t, time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC), lister.filter.To, "to is inclusive")
	assert.Equal(t, "p1", lister.filter.PartnerID)
	assert.Equal(t, 2, rep.Summary.Total)
	assert.InDelta(t, 50, rep.Summary.SuccessRate, 1e-9)
	assert.Len(t, rep.Groups, 2)
}

func TestSummaryOpenRange(t *testing.T) {
	lister := &fakeLister{}

	rep, err := NewReportService(lister).Summary(context.Background(), &model.ReportQuery{})

	require.NoError(t, err)
	assert.True(t, lister.filter.From.IsZero())
	assert.True(t, lister.filter.To.IsZero())
	assert.Zero(t, rep.Summary.Total)
	assert.Empty(t, rep.Groups)
}

func TestSummaryRejectsInvertedRange(t *testing.T) {
	_, err := NewReportService(&fakeLister{}).Summary(context.Background(), &model.ReportQuery{From: "2026-05-03", To: "2026-05-01"})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = NewReportService(&fakeLister{}).Summary(context.Background(), &model.ReportQuery{From: "May 1"})
	assert.ErrorIs(t, err, ErrInvalidRange)
}
