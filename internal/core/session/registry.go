package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hay-kot/courier/internal/core/messaging"
)

// maxTokenAttempts bounds retries when the token source produces a collision.
const maxTokenAttempts = 8

// ErrTokenExhausted is returned when no unique token could be generated.
var ErrTokenExhausted = errors.New("could not generate a unique session token")

// RunnerFactory builds a fresh runner, with its own client, for identity.
type RunnerFactory func(identity string) *messaging.Runner

// Registry maps session tokens to sessions. All operations are safe for
// concurrent use; absence is reported, never returned as an error.
type Registry struct {
	newRunner RunnerFactory
	ttl       time.Duration
	now       func() time.Time
	token     func() (string, error)
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTTL sets the session lifetime.
func WithTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.ttl = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithTokenFunc replaces the token generator.
func WithTokenFunc(fn func() (string, error)) RegistryOption {
	return func(r *Registry) { r.token = fn }
}

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewToken returns a random UUIDv4 string.
func NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRegistry creates an empty registry.
func NewRegistry(newRunner RunnerFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		newRunner: newRunner,
		ttl:       DefaultTTL,
		now:       time.Now,
		token:     NewToken,
		log:       zerolog.Nop(),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the configured session lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Create stores a new session for identity and returns its token.
func (r *Registry) Create(identity string) (string, error) {
	runner := r.newRunner(identity)

	r.mu.Lock()
	defer r.mu.Unlock()

	for range maxTokenAttempts {
		token, err := r.token()
		if err != nil {
			return "", fmt.Errorf("generate session token: %w", err)
		}
		if _, exists := r.sessions[token]; exists {
			continue
		}

		now := r.now()
		r.sessions[token] = &Session{
			Token:        token,
			Identity:     identity,
			CreatedAt:    now,
			LastActivity: now,
			ExpiresAt:    now.Add(r.ttl),
			Runner:       runner,
		}

		r.log.Debug().Str("identity", identity).Time("expires_at", now.Add(r.ttl)).Msg("session created")
		return token, nil
	}

	return "", ErrTokenExhausted
}

// Get returns a copy of the live session for token. An expired session is
// evicted in the same step and reported absent. Get never extends expiry.
func (r *Registry) Get(token string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.liveLocked(token, r.now())
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Touch records activity on a live session and returns its updated snapshot.
// ExpiresAt is left unchanged.
func (r *Registry) Touch(token string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sess, ok := r.liveLocked(token, now)
	if !ok {
		return Info{}, false
	}
	sess.LastActivity = now
	return sess.Info(), true
}

// Info returns a snapshot of the live session for token.
func (r *Registry) Info(token string) (Info, bool) {
	sess, ok := r.Get(token)
	if !ok {
		return Info{}, false
	}
	return sess.Info(), true
}

func (r *Registry) liveLocked(token string, now time.Time) (*Session, bool) {
	sess, ok := r.sessions[token]
	if !ok {
		return nil, false
	}

	if sess.Expired(now) {
		delete(r.sessions, token)
		r.log.Debug().Str("identity", sess.Identity).Msg("session expired")
		return nil, false
	}
	return sess, true
}

// Delete removes the session for token. Deleting an absent token is a no-op.
func (r *Registry) Delete(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}

// SweepExpired evicts every expired session and returns how many were removed.
func (r *Registry) SweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

func (r *Registry) sweepLocked() int {
	now := r.now()
	count := 0
	for token, sess := range r.sessions {
		if sess.Expired(now) {
			delete(r.sessions, token)
			count++
		}
	}
	return count
}

// ListActive sweeps expired sessions and returns snapshots of the rest in no
// particular order.
func (r *Registry) ListActive() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	infos := make([]Info, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, sess.Info())
	}
	return infos
}

// Len returns the number of stored sessions, including expired ones not yet
// evicted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RunSweeper evicts expired sessions every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.SweepExpired(); n > 0 {
				r.log.Info().Int("count", n).Msg("swept expired sessions")
			}
		}
	}
}
