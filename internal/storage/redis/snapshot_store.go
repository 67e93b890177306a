package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goodtune/playwarden/internal/storage"
	"github.com/redis/go-redis/v9"
)

const snapshotKey = "playwarden:snapshot:latest"

type snapshotStore struct {
	client *redis.Client
}

// Put replaces the last-known-good snapshot.
func (s *snapshotStore) Put(ctx context.Context, snapshot storage.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return s.client.Set(ctx, snapshotKey, payload, 0).Err()
}

// Latest returns the most recent snapshot, or ErrNotFound when the
// agent has never completed a fetch.
func (s *snapshotStore) Latest(ctx context.Context) (*storage.Snapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var snapshot storage.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snapshot, nil
}
