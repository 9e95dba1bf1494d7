package jsonfile

import (
	"context"
	"sync"
	"time"

	"github.com/hay-kot/courier/internal/core/settings"
)

type settingsFile struct {
	Accounts map[string]settings.Settings `json:"accounts"`
}

// SettingsStore implements settings.Store in a single JSON file keyed by
// identity. The file holds session credentials and is written 0600.
type SettingsStore struct {
	path string
	now  func() time.Time
	mu   sync.RWMutex
}

var _ settings.Store = (*SettingsStore)(nil)

// NewSettingsStore creates a settings store at the given path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path, now: time.Now}
}

// Load returns the settings for identity. Returns ErrNotFound if none are stored.
func (s *SettingsStore) Load(ctx context.Context, identity string) (settings.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		entry settings.Settings
		found bool
	)

	err := withSharedLock(s.path, func() error {
		var f settingsFile
		if err := readJSON(s.path, &f); err != nil {
			return err
		}
		entry, found = f.Accounts[identity]
		return nil
	})
	if err != nil {
		return settings.Settings{}, err
	}

	if !found {
		return settings.Settings{}, settings.ErrNotFound
	}
	return entry, nil
}

// Save stores settings for identity, stamping UpdatedAt.
func (s *SettingsStore) Save(ctx context.Context, identity string, entry settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withExclusiveLock(s.path, func() error {
		var f settingsFile
		if err := readJSON(s.path, &f); err != nil {
			return err
		}
		if f.Accounts == nil {
			f.Accounts = make(map[string]settings.Settings)
		}

		entry.UpdatedAt = s.now()
		f.Accounts[identity] = entry
		return writeJSON(s.path, f, 0o600)
	})
}

// Delete removes settings for identity. Deleting an absent identity is a no-op.
func (s *SettingsStore) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withExclusiveLock(s.path, func() error {
		var f settingsFile
		if err := readJSON(s.path, &f); err != nil {
			return err
		}
		if _, ok := f.Accounts[identity]; !ok {
			return nil
		}

		delete(f.Accounts, identity)
		return writeJSON(s.path, f, 0o600)
	})
}
