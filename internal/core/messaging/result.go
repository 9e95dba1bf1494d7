package messaging

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Failure reasons recorded on ItemResult.Error.
const (
	ReasonNotLoggedIn       = "not logged in"
	ReasonRecipientNotFound = "recipient not found"
	ReasonCancelled         = "cancelled"
)

// Sentinel errors matching the failure reasons, for callers that branch on them.
var (
	ErrNotLoggedIn       = errors.New(ReasonNotLoggedIn)
	ErrRecipientNotFound = errors.New(ReasonRecipientNotFound)
	ErrCancelled         = errors.New(ReasonCancelled)
)

// ItemResult is the outcome of sending to a single recipient.
type ItemResult struct {
	Recipient string `json:"username"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

func succeeded(handle string) ItemResult {
	return ItemResult{Recipient: handle, Success: true}
}

func failed(handle, reason string) ItemResult {
	return ItemResult{Recipient: handle, Success: false, Error: reason}
}

// Summary counts outcomes in a result sequence.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Summarize tallies results.
func Summarize(results []ItemResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Successful++
		}
	}
	s.Failed = s.Total - s.Successful
	return s
}

// DelayRange bounds the randomized pause between consecutive sends.
type DelayRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// MaxDelaySeconds is the largest whole-second delay a time.Duration can hold.
const MaxDelaySeconds = math.MaxInt64 / int64(time.Second)

// Seconds builds a DelayRange from whole seconds. Callers bound inputs by
// MaxDelaySeconds; larger values overflow.
func Seconds(minSec, maxSec int) DelayRange {
	return DelayRange{
		Min: time.Duration(minSec) * time.Second,
		Max: time.Duration(maxSec) * time.Second,
	}
}

// Validate checks that the range is non-negative and ordered.
func (d DelayRange) Validate() error {
	if d.Min < 0 || d.Max < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if d.Min > d.Max {
		return fmt.Errorf("delay min %s exceeds max %s", d.Min, d.Max)
	}
	return nil
}

// LoginStatus tags the three possible login outcomes.
type LoginStatus string

const (
	LoginSuccess           LoginStatus = "success"
	LoginChallengeRequired LoginStatus = "challenge_required"
	LoginFailed            LoginStatus = "failed"
)

// LoginOutcome is returned from Runner.Login. Challenge is set only for
// LoginChallengeRequired and Reason only for LoginFailed.
type LoginOutcome struct {
	Status    LoginStatus `json:"status"`
	Challenge *Challenge  `json:"challenge,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// OK reports whether the login succeeded.
func (o LoginOutcome) OK() bool {
	return o.Status == LoginSuccess
}
