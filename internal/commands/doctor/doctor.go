// Package doctor runs diagnostic checks against the courier setup.
package doctor

import (
	"context"
	"fmt"
	"sync"
)

// Status represents the result status of a check item.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

var statusNames = [...]string{"pass", "warn", "fail"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText renders the status as its name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("invalid status %d", s)
	}
	return []byte(statusNames[s]), nil
}

// CheckItem is a single line within a check result.
type CheckItem struct {
	Label   string `json:"label"`
	Status  Status `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Fixable bool   `json:"fixable,omitempty"`
}

// Result is the outcome of one check.
type Result struct {
	Name  string      `json:"name"`
	Items []CheckItem `json:"items"`
}

// Check is a single diagnostic.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// Report collects every check result with item counts.
type Report struct {
	Results []Result `json:"checks"`
	Passed  int      `json:"passed"`
	Warned  int      `json:"warned"`
	Failed  int      `json:"failed"`
	// Fixable counts warn/fail items that --fix would resolve.
	Fixable int `json:"fixable"`
}

// Healthy reports whether no item failed.
func (r Report) Healthy() bool {
	return r.Failed == 0
}

// RunAll runs the checks concurrently. Results keep the order of checks.
func RunAll(ctx context.Context, checks []Check) Report {
	results := make([]Result, len(checks))

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check.Run(ctx)
		}()
	}
	wg.Wait()

	return NewReport(results)
}

// NewReport tallies results.
func NewReport(results []Result) Report {
	r := Report{Results: results}
	for _, res := range results {
		for _, item := range res.Items {
			switch item.Status {
			case StatusPass:
				r.Passed++
				continue
			case StatusWarn:
				r.Warned++
			case StatusFail:
				r.Failed++
			}
			if item.Fixable {
				r.Fixable++
			}
		}
	}
	return r
}
