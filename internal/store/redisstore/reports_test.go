package redisstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/core/report"
)

// newTestStore connects to COURIER_TEST_REDIS_ADDR and uses a unique key that
// is removed when the test ends.
func newTestStore(t *testing.T, maxEntries int) *ReportStore {
	t.Helper()

	addr := os.Getenv("COURIER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COURIER_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	key := "courier:test:" + uuid.NewString()
	t.Cleanup(func() {
		_ = client.Del(ctx, key).Err()
		_ = client.Close()
	})

	return NewReportStore(client, key, maxEntries)
}

func testReport(id, identity string) report.Report {
	return report.Report{
		ID:         id,
		Timestamp:  time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Identity:   identity,
		Message:    "hello",
		Total:      1,
		Successful: 1,
		Results:    []messaging.ItemResult{{Recipient: "bob", Success: true}},
	}
}

func TestReportStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		store := newTestStore(t, 0)

		_, err := store.Latest(ctx, "")
		assert.ErrorIs(t, err, report.ErrNotFound)

		reports, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, reports)
	})

	t.Run("newest first and capped", func(t *testing.T) {
		store := newTestStore(t, 3)
		for i := range 5 {
			require.NoError(t, store.Save(ctx, testReport(fmt.Sprintf("r%d", i), "alice")))
		}

		reports, err := store.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, reports, 3)
		assert.Equal(t, "r4", reports[0].ID)
		assert.Equal(t, "r2", reports[2].ID)

		_, err = store.Get(ctx, "r0")
		assert.ErrorIs(t, err, report.ErrNotFound)

		got, err := store.Get(ctx, "r3")
		require.NoError(t, err)
		assert.Equal(t, testReport("r3", "alice"), got)
	})

	t.Run("latest by identity", func(t *testing.T) {
		store := newTestStore(t, 0)
		require.NoError(t, store.Save(ctx, testReport("a1", "alice")))
		require.NoError(t, store.Save(ctx, testReport("b1", "bob")))

		got, err := store.Latest(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "a1", got.ID)

		got, err = store.Latest(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "b1", got.ID)
	})
}
