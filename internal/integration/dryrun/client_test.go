package dryrun

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/courier/internal/core/messaging"
)

func TestClient(t *testing.T) {
	ctx := context.Background()
	client := New(zerolog.Nop())

	require.NoError(t, client.Authenticate(ctx, "alice", ""))

	id, found, err := client.LookupID(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, FakeID("bob"), id)
	assert.NotEqual(t, FakeID("carol"), id)

	require.NoError(t, client.Deliver(ctx, id, "hi"))
	assert.Equal(t, []Delivery{{ID: id, Message: "hi"}}, client.Deliveries())
}

func TestClient_WithRunner(t *testing.T) {
	client := New(zerolog.Nop())
	runner := messaging.NewRunner("alice", client,
		messaging.WithSleeper(func(context.Context, time.Duration) error { return nil }))

	require.True(t, runner.Login(context.Background(), "alice", "pw").OK())

	results := runner.SendBatch(context.Background(), []string{"bob", "carol"}, "hello", messaging.DelayRange{})
	assert.Equal(t, messaging.Summary{Total: 2, Successful: 2}, messaging.Summarize(results))

	deliveries := client.Deliveries()
	require.Len(t, deliveries, 2)
	assert.Equal(t, FakeID("bob"), deliveries[0].ID)
	assert.Equal(t, FakeID("carol"), deliveries[1].ID)
}
