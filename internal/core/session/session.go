// Package session defines the per-identity session record and the in-memory
// registry that owns them.
package session

import (
	"time"

	"github.com/hay-kot/courier/internal/core/messaging"
)

// DefaultTTL is the fixed lifetime of a session measured from creation.
const DefaultTTL = time.Hour

// Session binds an opaque token to one identity's runtime login state. The
// registry hands out copies; Runner is the only state they share.
type Session struct {
	Token        string
	Identity     string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time

	// Runner is owned exclusively by this session.
	Runner *messaging.Runner
}

// Info is a point-in-time snapshot of a session without its runner.
type Info struct {
	Token        string    `json:"token"`
	Identity     string    `json:"identity"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now. A session is
// valid strictly before ExpiresAt.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Info returns a snapshot of s.
func (s Session) Info() Info {
	return Info{
		Token:        s.Token,
		Identity:     s.Identity,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
	}
}
