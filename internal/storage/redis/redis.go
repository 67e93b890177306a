// Package redis implements the storage interfaces on Redis. State is
// small (one snapshot, an alert journal, one summary per day), so a
// single client with JSON payloads is enough.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/playwarden/internal/config"
	"github.com/goodtune/playwarden/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client    *redis.Client
	snapshots *snapshotStore
	alerts    *alertStore
	summaries *summaryStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &Store{
		client:    client,
		snapshots: &snapshotStore{client: client},
		alerts:    &alertStore{client: client},
		summaries: &summaryStore{client: client},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Snapshots returns the SnapshotStore implementation
func (s *Store) Snapshots() storage.SnapshotStore {
	return s.snapshots
}

// Alerts returns the AlertStore implementation
func (s *Store) Alerts() storage.AlertStore {
	return s.alerts
}

// Summaries returns the SummaryStore implementation
func (s *Store) Summaries() storage.SummaryStore {
	return s.summaries
}
