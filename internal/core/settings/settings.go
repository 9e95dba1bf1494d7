// Package settings defines per-identity client state that survives restarts,
// so a later login can hand the previous session id back to the platform.
package settings

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no settings are stored for an identity.
var ErrNotFound = errors.New("client settings not found")

// Settings is the resumable state a messaging client keeps for one identity.
type Settings struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists Settings keyed by identity.
type Store interface {
	Load(ctx context.Context, identity string) (Settings, error)
	Save(ctx context.Context, identity string, s Settings) error
	Delete(ctx context.Context, identity string) error
}
