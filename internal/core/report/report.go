// Package report defines the persisted record of a finished batch send.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/hay-kot/courier/internal/core/messaging"
)

// Report summarizes one SendBatch call.
type Report struct {
	ID         string                 `json:"id"`
	BatchID    string                 `json:"batch_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Identity   string                 `json:"identity"`
	Message    string                 `json:"message"`
	Total      int                    `json:"total_users"`
	Successful int                    `json:"successful"`
	Failed     int                    `json:"failed"`
	Results    []messaging.ItemResult `json:"results"`
}

// New builds a report for results with a time-ordered ID.
func New(identity, message string, results []messaging.ItemResult, at time.Time) (Report, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Report{}, err
	}

	sum := messaging.Summarize(results)

	return Report{
		ID:         id.String(),
		Timestamp:  at,
		Identity:   identity,
		Message:    message,
		Total:      sum.Total,
		Successful: sum.Successful,
		Failed:     sum.Failed,
		Results:    results,
	}, nil
}

// Summary returns the counts recorded in r.
func (r Report) Summary() messaging.Summary {
	return messaging.Summary{Total: r.Total, Successful: r.Successful, Failed: r.Failed}
}

// FailedResults returns the items that were not delivered.
func (r Report) FailedResults() []messaging.ItemResult {
	var out []messaging.ItemResult
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}
