package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRetention = 7 * 24 * time.Hour

// RedisSink stores events as a JSON list under analytics:<jobID>.
type RedisSink struct {
	redis     *redis.Client
	retention time.Duration
}

func NewRedisSink(rdb *redis.Client) *RedisSink {
	return &RedisSink{redis: rdb, retention: defaultRetention}
}

func key(jobID string) string {
	return "analytics:" + jobID
}

func (s *RedisSink) Write(ctx context.Context, jobID string, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	values := make([]any, len(events))
	for i, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		values[i] = data
	}

	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key(jobID), values...)
	pipe.Expire(ctx, key(jobID), s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write analytics: %w", err)
	}
	return nil
}

// Events reads back every stored event for a job.
func (s *RedisSink) Events(ctx context.Context, jobID string) ([]Event, error) {
	raw, err := s.redis.LRange(ctx, key(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics: %w", err)
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}
