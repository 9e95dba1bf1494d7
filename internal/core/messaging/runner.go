package messaging

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sampler picks a delay in [min, max].
type Sampler func(min, max time.Duration) time.Duration

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// UniformSampler draws uniformly from [min, max] at nanosecond resolution.
func UniformSampler(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}

// ContextSleeper waits on a timer and wakes early when ctx is cancelled.
func ContextSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Status is a snapshot of the runner's login state.
type Status struct {
	LoggedIn bool   `json:"logged_in"`
	Identity string `json:"identity"`
}

// Runner holds one identity's login state and executes batch sends. It owns its
// Client exclusively.
type Runner struct {
	client   Client
	sample   Sampler
	sleep    Sleeper
	log      zerolog.Logger
	mu       sync.RWMutex
	loggedIn bool
	identity string
}

// Option configures a Runner.
type Option func(*Runner)

// WithSampler overrides the delay sampler.
func WithSampler(s Sampler) Option {
	return func(r *Runner) { r.sample = s }
}

// WithSleeper overrides how the runner waits between sends.
func WithSleeper(s Sleeper) Option {
	return func(r *Runner) { r.sleep = s }
}

// WithLogger sets the runner's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// NewRunner creates a logged-out runner for identity.
func NewRunner(identity string, client Client, opts ...Option) *Runner {
	r := &Runner{
		client:   client,
		sample:   UniformSampler,
		sleep:    ContextSleeper,
		log:      zerolog.Nop(),
		identity: identity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status returns the current login state.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{LoggedIn: r.loggedIn, Identity: r.identity}
}

// LoggedIn reports whether the runner may send.
func (r *Runner) LoggedIn() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loggedIn
}

// Login authenticates identity through the client. Only a successful round-trip
// changes state.
func (r *Runner) Login(ctx context.Context, identity, secret string) LoginOutcome {
	r.log.Info().Str("identity", identity).Msg("attempting login")

	err := r.client.Authenticate(ctx, identity, secret)
	if err != nil {
		var challenge *ChallengeError
		if errors.As(err, &challenge) {
			r.log.Warn().Str("identity", identity).Str("kind", challenge.Kind).Msg("login requires verification")
			c := challenge.Challenge
			return LoginOutcome{Status: LoginChallengeRequired, Challenge: &c}
		}

		r.log.Error().Err(err).Str("identity", identity).Msg("login failed")
		return LoginOutcome{Status: LoginFailed, Reason: err.Error()}
	}

	r.mu.Lock()
	r.loggedIn = true
	r.identity = identity
	r.mu.Unlock()

	r.log.Info().Str("identity", identity).Msg("logged in")
	return LoginOutcome{Status: LoginSuccess}
}

// Logout returns the runner to the logged-out state. The runner can log in again.
func (r *Runner) Logout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggedIn = false
}

// ResolveRecipientID looks up handle. Lookup errors are logged and reported as
// not found.
func (r *Runner) ResolveRecipientID(ctx context.Context, handle string) (string, bool) {
	id, found, err := r.client.LookupID(ctx, handle)
	if err != nil {
		r.log.Error().Err(err).Str("recipient", handle).Msg("failed to resolve recipient")
		return "", false
	}
	return id, found
}

// SendOne delivers message to a single handle.
func (r *Runner) SendOne(ctx context.Context, handle, message string) ItemResult {
	if !r.LoggedIn() {
		return failed(handle, ReasonNotLoggedIn)
	}

	id, found, err := r.client.LookupID(ctx, handle)
	if err != nil {
		r.log.Error().Err(err).Str("recipient", handle).Msg("failed to resolve recipient")
		return failed(handle, err.Error())
	}
	if !found {
		r.log.Warn().Str("recipient", handle).Msg("recipient not found")
		return failed(handle, ReasonRecipientNotFound)
	}

	if err := r.client.Deliver(ctx, id, message); err != nil {
		r.log.Error().Err(err).Str("recipient", handle).Msg("delivery failed")
		return failed(handle, err.Error())
	}

	r.log.Info().Str("recipient", handle).Msg("message sent")
	return succeeded(handle)
}

// SendBatch sends message to each handle in order, pausing a sampled delay
// between consecutive sends. The result has one entry per handle in input order.
// A logged-out runner fails every item without contacting the client; a
// cancelled ctx marks the unsent remainder as cancelled.
func (r *Runner) SendBatch(ctx context.Context, handles []string, message string, delay DelayRange) []ItemResult {
	results := make([]ItemResult, 0, len(handles))

	if !r.LoggedIn() {
		r.log.Error().Int("total", len(handles)).Msg("batch rejected: not logged in")
		for _, h := range handles {
			results = append(results, failed(h, ReasonNotLoggedIn))
		}
		return results
	}

	total := len(handles)
	r.log.Info().Int("total", total).Msg("starting batch")

	for i, h := range handles {
		if ctx.Err() != nil {
			results = cancelRemaining(results, handles[i:])
			break
		}

		r.log.Debug().Int("index", i+1).Int("total", total).Str("recipient", h).Msg("processing recipient")
		results = append(results, r.SendOne(ctx, h, message))

		if i < total-1 {
			d := r.sample(delay.Min, delay.Max)
			r.log.Debug().Dur("delay", d).Msg("waiting before next message")
			if err := r.sleep(ctx, d); err != nil {
				results = cancelRemaining(results, handles[i+1:])
				break
			}
		}
	}

	sum := Summarize(results)
	r.log.Info().
		Int("total", sum.Total).
		Int("successful", sum.Successful).
		Int("failed", sum.Failed).
		Msg("batch complete")

	return results
}

func cancelRemaining(results []ItemResult, rest []string) []ItemResult {
	for _, h := range rest {
		results = append(results, failed(h, ReasonCancelled))
	}
	return results
}
