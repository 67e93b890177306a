package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/playwarden/internal/storage"
	"github.com/redis/go-redis/v9"
)

const alertJournalKey = "playwarden:alerts"

// alertRetention bounds the journal; the rollover trim uses the same
// horizon.
const alertRetention = 90 * 24 * time.Hour

type alertStore struct {
	client *redis.Client
}

// Append writes an alert to the journal, scored by event time, and
// drops anything older than the retention horizon in the same call.
func (s *alertStore) Append(ctx context.Context, record storage.AlertRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	script := redis.NewScript(appendAlertScript)

	keys := []string{alertJournalKey}
	args := []interface{}{
		string(payload),
		record.Timestamp.UnixMilli(),
		record.Timestamp.Add(-alertRetention).UnixMilli(),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// List returns alerts newest first, bounded by the filter's time
// window and limit.
func (s *alertStore) List(ctx context.Context, filter storage.AlertFilter) ([]storage.AlertRecord, error) {
	rangeBy := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if filter.StartTime != nil {
		rangeBy.Min = strconv.FormatInt(filter.StartTime.UnixMilli(), 10)
	}
	if filter.EndTime != nil {
		rangeBy.Max = strconv.FormatInt(filter.EndTime.UnixMilli(), 10)
	}
	if filter.Limit > 0 {
		rangeBy.Count = int64(filter.Limit)
	}

	payloads, err := s.client.ZRevRangeByScore(ctx, alertJournalKey, rangeBy).Result()
	if err != nil {
		return nil, err
	}

	records := make([]storage.AlertRecord, 0, len(payloads))
	for _, payload := range payloads {
		var record storage.AlertRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("failed to decode alert: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

// TrimBefore removes journal entries older than the cutoff and returns
// how many were dropped.
func (s *alertStore) TrimBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)

	removed, err := s.client.ZRemRangeByScore(ctx, alertJournalKey, "-inf", max).Result()
	if err != nil {
		return 0, err
	}

	return int(removed), nil
}
