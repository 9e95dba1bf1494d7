// Package redisstore keeps batch reports in a capped redis list.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hay-kot/courier/internal/core/report"
)

// ReportStore implements report.Store on a single redis list. New reports are
// pushed to the head so LRANGE returns them newest first.
type ReportStore struct {
	redis      *redis.Client
	key        string
	maxEntries int
}

var _ report.Store = (*ReportStore)(nil)

// NewReportStore returns a store using key. maxEntries caps the list length
// (0 means unlimited).
func NewReportStore(client *redis.Client, key string, maxEntries int) *ReportStore {
	return &ReportStore{redis: client, key: key, maxEntries: maxEntries}
}

// Save pushes r and trims the list in one transaction.
func (s *ReportStore) Save(ctx context.Context, r report.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		if s.maxEntries > 0 {
			pipe.LTrim(ctx, s.key, 0, int64(s.maxEntries-1))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("push report: %w", err)
	}
	return nil
}

// Get returns a report by ID. Returns ErrNotFound if not found.
func (s *ReportStore) Get(ctx context.Context, id string) (report.Report, error) {
	return s.find(ctx, func(r report.Report) bool { return r.ID == id })
}

// Latest returns the newest report for identity, or the newest overall when
// identity is empty.
func (s *ReportStore) Latest(ctx context.Context, identity string) (report.Report, error) {
	if identity == "" {
		reports, err := s.List(ctx, 1)
		if err != nil {
			return report.Report{}, err
		}
		if len(reports) == 0 {
			return report.Report{}, report.ErrNotFound
		}
		return reports[0], nil
	}
	return s.find(ctx, func(r report.Report) bool { return r.Identity == identity })
}

// List returns up to limit reports, newest first.
func (s *ReportStore) List(ctx context.Context, limit int) ([]report.Report, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := s.redis.LRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}

	reports := make([]report.Report, 0, len(raw))
	for _, item := range raw {
		var r report.Report
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *ReportStore) find(ctx context.Context, match func(report.Report) bool) (report.Report, error) {
	reports, err := s.List(ctx, 0)
	if err != nil {
		return report.Report{}, err
	}

	for _, r := range reports {
		if match(r) {
			return r, nil
		}
	}
	return report.Report{}, report.ErrNotFound
}

// Ping checks the connection to redis.
func (s *ReportStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
