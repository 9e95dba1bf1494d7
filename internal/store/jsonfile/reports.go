package jsonfile

import (
	"context"
	"sync"

	"github.com/hay-kot/courier/internal/core/report"
)

// reportsFile is the root JSON structure stored on disk.
type reportsFile struct {
	Reports []report.Report `json:"reports"`
}

// ReportStore implements report.Store using a JSON file for persistence.
// Reports are kept newest first.
type ReportStore struct {
	path       string
	maxEntries int
	mu         sync.RWMutex
}

var _ report.Store = (*ReportStore)(nil)

// NewReportStore creates a new JSON file report store at the given path.
// maxEntries limits stored reports (0 means unlimited).
func NewReportStore(path string, maxEntries int) *ReportStore {
	return &ReportStore{path: path, maxEntries: maxEntries}
}

// Save adds a report, pruning old reports to stay within maxEntries.
func (s *ReportStore) Save(ctx context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withExclusiveLock(s.path, func() error {
		var f reportsFile
		if err := readJSON(s.path, &f); err != nil {
			return err
		}

		f.Reports = append([]report.Report{r}, f.Reports...)

		if s.maxEntries > 0 && len(f.Reports) > s.maxEntries {
			f.Reports = f.Reports[:s.maxEntries]
		}

		return writeJSON(s.path, f, 0o644)
	})
}

// Get returns a report by ID. Returns ErrNotFound if not found.
func (s *ReportStore) Get(ctx context.Context, id string) (report.Report, error) {
	return s.find(func(r report.Report) bool { return r.ID == id })
}

// Latest returns the newest report for identity, or the newest overall when
// identity is empty.
func (s *ReportStore) Latest(ctx context.Context, identity string) (report.Report, error) {
	return s.find(func(r report.Report) bool { return identity == "" || r.Identity == identity })
}

// List returns up to limit reports, newest first.
func (s *ReportStore) List(ctx context.Context, limit int) ([]report.Report, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(f.Reports) > limit {
		return f.Reports[:limit], nil
	}
	return f.Reports, nil
}

func (s *ReportStore) find(match func(report.Report) bool) (report.Report, error) {
	f, err := s.load()
	if err != nil {
		return report.Report{}, err
	}

	for _, r := range f.Reports {
		if match(r) {
			return r, nil
		}
	}

	return report.Report{}, report.ErrNotFound
}

func (s *ReportStore) load() (reportsFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f reportsFile
	err := withSharedLock(s.path, func() error {
		return readJSON(s.path, &f)
	})
	return f, err
}
