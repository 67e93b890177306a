package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/playwarden/internal/storage"
	"github.com/redis/go-redis/v9"
)

const summaryIndexKey = "playwarden:summaries"

type summaryStore struct {
	client *redis.Client
}

func summaryKey(date string) string {
	return fmt.Sprintf("playwarden:summary:%s", date)
}

// Upsert stores a daily summary and indexes its date.
func (s *summaryStore) Upsert(ctx context.Context, summary storage.DailySummary) error {
	day, err := time.Parse(storage.DateFormat, summary.Date)
	if err != nil {
		return fmt.Errorf("invalid summary date %q: %w", summary.Date, err)
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	script := redis.NewScript(putSummaryScript)

	keys := []string{summaryKey(summary.Date), summaryIndexKey}
	args := []interface{}{
		summary.Date,
		string(payload),
		day.UnixMilli(),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Range returns summaries between the from and to dates inclusive,
// oldest first. Empty bounds are open.
func (s *summaryStore) Range(ctx context.Context, from, to string) ([]storage.DailySummary, error) {
	rangeBy := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if from != "" {
		day, err := time.Parse(storage.DateFormat, from)
		if err != nil {
			return nil, fmt.Errorf("invalid from date %q: %w", from, err)
		}
		rangeBy.Min = strconv.FormatInt(day.UnixMilli(), 10)
	}
	if to != "" {
		day, err := time.Parse(storage.DateFormat, to)
		if err != nil {
			return nil, fmt.Errorf("invalid to date %q: %w", to, err)
		}
		rangeBy.Max = strconv.FormatInt(day.UnixMilli(), 10)
	}

	dates, err := s.client.ZRangeByScore(ctx, summaryIndexKey, rangeBy).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]storage.DailySummary, 0, len(dates))
	for _, date := range dates {
		payload, err := s.client.Get(ctx, summaryKey(date)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var summary storage.DailySummary
		if err := json.Unmarshal(payload, &summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}
