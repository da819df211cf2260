// Package aggregate rolls generation records up into report metrics.
package aggregate

import (
	"math"
	"sort"
	"time"
)

// SLAWindow is the completion deadline counted as compliant.
const SLAWindow = 24 * time.Hour

// Status is the lifecycle state of a generation record.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Record is one generation attempt as stored by the service.
type Record struct {
	ID           string     `json:"id"`
	PartnerID    string     `json:"partner_id"`
	UserID       string     `json:"user_id"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	VideoSeconds float64    `json:"video_seconds"`
}

// Latency is the processing time of a completed record.
func (r Record) Latency() (time.Duration, bool) {
	if r.CompletedAt == nil {
		return 0, false
	}
	return r.CompletedAt.Sub(r.CreatedAt), true
}

// Metrics is the roll-up of a set of records. Percentiles are nil when no
// succeeded record has completed.
type Metrics struct {
	Total         int      `json:"total"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	SuccessRate   float64  `json:"success_rate"`
	SLACompliance float64  `json:"sla_compliance"`
	P50Seconds    *float64 `json:"p50_seconds"`
	P95Seconds    *float64 `json:"p95_seconds"`
	P99Seconds    *float64 `json:"p99_seconds"`
	VideoSeconds  float64  `json:"video_seconds"`
	ActiveSeats   int      `json:"active_seats"`
}

// Group is the metrics of one partition key.
type Group struct {
	Key     string  `json:"key"`
	Metrics Metrics `json:"metrics"`
}

// Report is the value returned to report consumers.
type Report struct {
	Summary Metrics `json:"summary"`
	Groups  []Group `json:"groups"`
	Daily   []Group `json:"daily"`
}

// Percentile returns the nearest-rank value: the series is sorted ascending and
// indexed at floor(p*n), clamped to the last element. The input is not
// modified. An empty series yields false.
func Percentile(series []float64, p float64) (float64, bool) {
	n := len(series)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, series)
	sort.Float64s(sorted)

	idx := int(math.Floor(p * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx], true
}

// Rate returns part/total as a percentage, 0 when total is 0.
func Rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// Summarize computes metrics over every record given. Only succeeded records
// delivered within SLAWindow count as SLA compliant; failed, cancelled and
// unfinished records count against compliance.
func Summarize(records []Record) Metrics {
	m := Metrics{Total: len(records)}
	var (
		compliant int
		latencies []float64
		seats     = make(map[string]struct{})
	)
	for _, r := range records {
		switch r.Status {
		case StatusSucceeded:
			m.Succeeded++
			m.VideoSeconds += r.VideoSeconds
			if d, ok := r.Latency(); ok {
				latencies = append(latencies, d.Seconds())
				if d <= SLAWindow {
					compliant++
				}
			}
		case StatusFailed:
			m.Failed++
		case StatusQueued, StatusProcessing, StatusCancelled:
		}
		if r.UserID != "" {
			seats[r.UserID] = struct{}{}
		}
	}

	m.SuccessRate = Rate(m.Succeeded, m.Total)
	m.SLACompliance = Rate(compliant, m.Total)
	m.ActiveSeats = len(seats)
	m.P50Seconds = percentilePtr(latencies, 0.50)
	m.P95Seconds = percentilePtr(latencies, 0.95)
	m.P99Seconds = percentilePtr(latencies, 0.99)
	return m
}

func percentilePtr(series []float64, p float64) *float64 {
	v, ok := Percentile(series, p)
	if !ok {
		return nil
	}
	return &v
}

// GroupBy partitions records by key and summarizes each partition. Groups are
// sorted by key. Records with an empty key are grouped under "".
func GroupBy(records []Record, key func(Record) string) []Group {
	buckets := make(map[string][]Record)
	for _, r := range records {
		k := key(r)
		buckets[k] = append(buckets[k], r)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, Group{Key: k, Metrics: Summarize(buckets[k])})
	}
	return groups
}

// Daily groups records by the UTC calendar day they were created on.
func Daily(records []Record) []Group {
	return GroupBy(records, ByDay)
}

func ByPartner(r Record) string { return r.PartnerID }
func ByUser(r Record) string    { return r.UserID }
func ByDay(r Record) string     { return r.CreatedAt.UTC().Format(time.DateOnly) }

// Build assembles a report. A nil key skips the grouped section.
func Build(records []Record, key func(Record) string) Report {
	rep := Report{
		Summary: Summarize(records),
		Groups:  []Group{},
		Daily:   Daily(records),
	}
	if key != nil {
		rep.Groups = GroupBy(records, key)
	}
	return rep
}
