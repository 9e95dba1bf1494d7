package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(dataDir, "missing.yaml"), dataDir)
	require.NoError(t, err)

	want := DefaultConfig()
	want.DataDir = dataDir
	assert.Equal(t, &want, cfg)
}

func TestLoad_ParsesFile(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
  session_ttl: 30m
account:
  username: alice
message:
  text: "Hi there"
  delay_min: 2s
  delay_max: 5s
files:
  usernames: "lists/**/*.txt"
client:
  kind: dryrun
results:
  backend: redis
redis:
  addr: "redis:6379"
  db: 2
`)

	cfg, err := Load(path, dataDir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, "alice", cfg.Account.Username)
	assert.Equal(t, "Hi there", cfg.Message.Text)
	assert.Equal(t, 2*time.Second, cfg.Message.DelayMin)
	assert.Equal(t, 5*time.Second, cfg.Message.DelayMax)
	assert.Equal(t, "lists/**/*.txt", cfg.Files.Usernames)
	assert.Equal(t, ClientDryRun, cfg.Client.Kind)
	assert.Equal(t, ResultsRedis, cfg.Results.Backend)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, dataDir, cfg.DataDir)

	// unset values keep their defaults
	assert.Equal(t, "session_id", cfg.Server.CookieName)
	assert.Equal(t, 5*time.Minute, cfg.Server.SweepInterval)
	assert.Equal(t, 100, cfg.Results.MaxEntries)
	assert.Equal(t, "courier:reports", cfg.Redis.Key)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")

	_, err := Load(path, t.TempDir())
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
message:
  delay_min: 10s
  delay_max: 1s
client:
  kind: carrier-pigeon
results:
  backend: postgres
`)

	_, err := Load(path, t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.ErrorContains(t, err, "invalid config")
	assert.True(t, hasField(fieldErrs, "message.delay_max"))
	assert.True(t, hasField(fieldErrs, "client.kind"))
	assert.True(t, hasField(fieldErrs, "results.backend"))
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := DefaultConfig()

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, cfg.Validate(), &fieldErrs)
	assert.True(t, hasField(fieldErrs, "data_dir"))
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"

	assert.Equal(t, "/data/results.json", cfg.ResultsPath())
	assert.Equal(t, "/data/client_settings.json", cfg.SettingsFile())
	assert.Equal(t, "/data/logs", cfg.LogsDir())
	assert.Equal(t, "usernames.txt", cfg.UploadPath())

	cfg.Files.Usernames = "lists/**/*.txt"
	assert.Equal(t, "/data/usernames.txt", cfg.UploadPath())

	cfg.Files.Upload = "/tmp/upload.txt"
	cfg.Files.ResultsFile = "/tmp/results.json"
	assert.Equal(t, "/tmp/upload.txt", cfg.UploadPath())
	assert.Equal(t, "/tmp/results.json", cfg.ResultsPath())
}
