package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lessonforge/api/internal/aggregate"
	"github.com/lessonforge/api/internal/model"
	"github.com/lessonforge/api/internal/store"
)

// RecordLister lists generation records for reporting.
type RecordLister interface {
	List(ctx context.Context, f store.Filter) ([]aggregate.Record, error)
}

// ReportService builds usage reports from generation records.
type ReportService struct {
	records RecordLister
}

func NewReportService(records RecordLister) *ReportService {
	return &ReportService{records: records}
}

// Summary aggregates the records created between From and To, both
// inclusive UTC days. Missing bounds leave that side open.
func (s *ReportService) Summary(ctx context.Context, q *model.ReportQuery) (*aggregate.Report, error) {
	filter := store.Filter{PartnerID: q.PartnerID, UserID: q.UserID}

	if q.From != "" {
		from, err := time.Parse(time.DateOnly, q.From)
		if err != nil {
			return nil, fmt.Errorf("%w: from: %v", ErrInvalidRange, err)
		}
		filter.From = from
	}
	if q.To != "" {
		to, err := time.Parse(time.DateOnly, q.To)
		if err != nil {
			return nil, fmt.Errorf("%w: to: %v", ErrInvalidRange, err)
		}
		filter.To = to.AddDate(0, 0, 1)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}

	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	report := aggregate.Build(records, groupKey(q.GroupBy))
	return &report, nil
}

func groupKey(g model.GroupBy) func(aggregate.Record) string {
	switch g {
	case model.GroupByPartner:
		return aggregate.ByPartner
	case model.GroupByUser:
		return aggregate.ByUser
	case model.GroupByDay:
		return aggregate.ByDay
	}
	return nil
}
