package report

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no matching report exists.
var ErrNotFound = errors.New("report not found")

// Store defines persistence operations for batch reports.
type Store interface {
	// Save records a report, pruning the oldest if the store is capped.
	Save(ctx context.Context, r Report) error
	// Get returns a report by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (Report, error)
	// Latest returns the newest report for identity, or the newest overall
	// when identity is empty. Returns ErrNotFound if none.
	Latest(ctx context.Context, identity string) (Report, error)
	// List returns up to limit reports, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Report, error)
}
