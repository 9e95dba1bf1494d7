package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/courier/internal/core/settings"
)

func TestSettingsStore(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	newStore := func(t *testing.T) (*SettingsStore, string) {
		path := filepath.Join(t.TempDir(), "client_settings.json")
		store := NewSettingsStore(path)
		store.now = func() time.Time { return fixed }
		return store, path
	}

	t.Run("load missing", func(t *testing.T) {
		store, _ := newStore(t)
		_, err := store.Load(ctx, "alice")
		assert.ErrorIs(t, err, settings.ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		store, path := newStore(t)

		require.NoError(t, store.Save(ctx, "alice", settings.Settings{SessionID: "sid-a", UserID: "1"}))
		require.NoError(t, store.Save(ctx, "bob", settings.Settings{SessionID: "sid-b"}))

		got, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, settings.Settings{SessionID: "sid-a", UserID: "1", UpdatedAt: fixed}, got)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("save overwrites", func(t *testing.T) {
		store, _ := newStore(t)

		require.NoError(t, store.Save(ctx, "alice", settings.Settings{SessionID: "old"}))
		require.NoError(t, store.Save(ctx, "alice", settings.Settings{SessionID: "new"}))

		got, err := store.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "new", got.SessionID)
	})

	t.Run("delete", func(t *testing.T) {
		store, _ := newStore(t)

		require.NoError(t, store.Save(ctx, "alice", settings.Settings{SessionID: "sid"}))
		require.NoError(t, store.Delete(ctx, "alice"))
		require.NoError(t, store.Delete(ctx, "alice"))

		_, err := store.Load(ctx, "alice")
		assert.ErrorIs(t, err, settings.ErrNotFound)
	})
}
