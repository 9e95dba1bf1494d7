package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/courier/internal/core/config"
)

func TestDataDirCheck_Missing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "courier")

	result := NewDataDirCheck(dir, false).Run(context.Background())

	assert.Equal(t, "Data Directory", result.Name)
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusWarn, result.Items[0].Status)
	assert.True(t, result.Items[0].Fixable)
	assert.Equal(t, 1, NewReport([]Result{result}).Fixable)

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestDataDirCheck_FixCreates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "courier")

	result := NewDataDirCheck(dir, true).Run(context.Background())

	rep := NewReport([]Result{result})
	assert.Equal(t, 3, rep.Passed)
	assert.Zero(t, rep.Warned)
	assert.True(t, rep.Healthy())

	info, err := os.Stat(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDataDirCheck_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	result := NewDataDirCheck(path, true).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestDataDirCheck_StaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "results.json.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.json"), []byte("{}"), 0o644))

	t.Run("reports", func(t *testing.T) {
		result := NewDataDirCheck(dir, false).Run(context.Background())

		var found bool
		for _, item := range result.Items {
			if item.Label == "results.json.tmp" {
				found = true
				assert.Equal(t, StatusWarn, item.Status)
				assert.True(t, item.Fixable)
			}
		}
		assert.True(t, found)

		_, err := os.Stat(stale)
		assert.NoError(t, err)
	})

	t.Run("fixes", func(t *testing.T) {
		result := NewDataDirCheck(dir, true).Run(context.Background())

		rep := NewReport([]Result{result})
		assert.True(t, rep.Healthy())
		assert.Zero(t, rep.Fixable)

		_, err := os.Stat(stale)
		assert.True(t, os.IsNotExist(err))

		_, err = os.Stat(filepath.Join(dir, "results.json"))
		assert.NoError(t, err)
	})
}

func TestBackendCheck(t *testing.T) {
	check := NewBackendCheck(time.Second,
		Target{Label: "Bridge", Addr: "http://127.0.0.1:8080", Ping: func(context.Context) error { return nil }},
		Target{Label: "Redis", Addr: "localhost:6379", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)

	rep := RunAll(context.Background(), []Check{check})
	require.Len(t, rep.Results, 1)
	items := rep.Results[0].Items
	require.Len(t, items, 2)

	assert.Equal(t, StatusPass, items[0].Status)
	assert.Contains(t, items[0].Detail, "http://127.0.0.1:8080")

	assert.Equal(t, StatusFail, items[1].Status)
	assert.Equal(t, "connection refused", items[1].Detail)

	assert.Equal(t, 1, rep.Passed)
	assert.Equal(t, 1, rep.Failed)
	assert.False(t, rep.Healthy())
}

func TestBackendCheck_Timeout(t *testing.T) {
	check := NewBackendCheck(10*time.Millisecond, Target{
		Label: "Bridge",
		Ping: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	result := check.Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Contains(t, result.Items[0].Detail, "deadline exceeded")
}

func TestBackendCheck_NoTargets(t *testing.T) {
	result := NewBackendCheck(time.Second).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
}

func TestConfigCheck(t *testing.T) {
	t.Run("not loaded", func(t *testing.T) {
		result := NewConfigCheck(nil, "").Run(context.Background())
		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFail, result.Items[0].Status)
	})

	t.Run("errors and warnings", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Client.Kind = "carrier-pigeon"

		result := NewConfigCheck(&cfg, "").Run(context.Background())

		rep := NewReport([]Result{result})
		assert.Positive(t, rep.Failed)
		assert.Positive(t, rep.Warned)
	})

	t.Run("valid shows the client", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = t.TempDir()
		cfg.Client.Kind = config.ClientDryRun

		result := NewConfigCheck(&cfg, "").Run(context.Background())

		require.GreaterOrEqual(t, len(result.Items), 3)
		assert.Equal(t, CheckItem{Label: "Client", Status: StatusPass, Detail: "dryrun"}, result.Items[1])
		assert.Equal(t, "file", result.Items[2].Detail)
	})
}

func TestRunAll_KeepsOrder(t *testing.T) {
	slow := NewBackendCheck(time.Second, Target{Label: "slow", Ping: func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}})
	fast := NewBackendCheck(time.Second, Target{Label: "fast", Ping: func(context.Context) error { return nil }})

	rep := RunAll(context.Background(), []Check{slow, fast})

	require.Len(t, rep.Results, 2)
	assert.Equal(t, "slow", rep.Results[0].Items[0].Label)
	assert.Equal(t, "fast", rep.Results[1].Items[0].Label)
}

func TestReport_JSONStatus(t *testing.T) {
	data, err := json.Marshal(CheckItem{Label: "Redis", Status: StatusWarn})
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"Redis","status":"warn"}`, string(data))

	_, err = json.Marshal(CheckItem{Status: Status(9)})
	assert.Error(t, err)
	assert.Equal(t, "unknown", Status(9).String())
}
