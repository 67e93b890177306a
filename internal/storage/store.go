// Package storage defines the persistence interfaces for agent state:
// the last-known-good backend snapshot, the alert journal, and daily
// summaries written at rollover.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Snapshots() SnapshotStore
	Alerts() AlertStore
	Summaries() SummaryStore
}

// SnapshotStore holds the most recent successful backend fetch. The
// agent reads it back after a restart so the dashboard can show stale
// data instead of nothing while the monitor service is down.
type SnapshotStore interface {
	Put(ctx context.Context, snapshot Snapshot) error
	Latest(ctx context.Context) (*Snapshot, error)
}

// AlertStore is the journal of threshold alerts.
type AlertStore interface {
	Append(ctx context.Context, record AlertRecord) error
	List(ctx context.Context, filter AlertFilter) ([]AlertRecord, error)
	TrimBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SummaryStore keeps one record per completed day.
type SummaryStore interface {
	Upsert(ctx context.Context, summary DailySummary) error
	// Range returns summaries between the from and to dates inclusive,
	// oldest first. Empty bounds are open.
	Range(ctx context.Context, from, to string) ([]DailySummary, error)
}
