package doctor

import (
	"context"
	"time"
)

// Target is a dependency that can be probed.
type Target struct {
	Label string
	// Addr is shown in the item detail.
	Addr string
	Ping func(ctx context.Context) error
}

// BackendCheck probes external services such as the messaging bridge and redis.
type BackendCheck struct {
	targets []Target
	timeout time.Duration
}

// NewBackendCheck creates a check over targets, each probed with timeout.
func NewBackendCheck(timeout time.Duration, targets ...Target) *BackendCheck {
	return &BackendCheck{targets: targets, timeout: timeout}
}

func (c *BackendCheck) Name() string {
	return "Backends"
}

func (c *BackendCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if len(c.targets) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "No external backends",
			Status: StatusPass,
		})
		return result
	}

	for _, target := range c.targets {
		result.Items = append(result.Items, c.probe(ctx, target))
	}
	return result
}

func (c *BackendCheck) probe(ctx context.Context, target Target) CheckItem {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := target.Ping(ctx); err != nil {
		return CheckItem{
			Label:  target.Label,
			Status: StatusFail,
			Detail: err.Error(),
		}
	}

	return CheckItem{
		Label:  target.Label,
		Status: StatusPass,
		Detail: target.Addr + " (" + time.Since(start).Round(time.Millisecond).String() + ")",
	}
}
