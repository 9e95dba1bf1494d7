// Package dryrun provides a messaging.Client that never contacts the platform.
// Every handle resolves to a stable fake id and deliveries are only recorded.
package dryrun

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hay-kot/courier/internal/core/messaging"
)

// namespace seeds the name-based UUIDs used as fake ids.
var namespace = uuid.MustParse("6f1c7f9e-2b8a-4d7e-9a3c-5f0e1d2c3b4a")

// Delivery is one recorded send.
type Delivery struct {
	ID      string
	Message string
}

// Client records what would have been sent.
type Client struct {
	log zerolog.Logger

	mu         sync.Mutex
	deliveries []Delivery
}

var _ messaging.Client = (*Client)(nil)

// New creates a dry-run client.
func New(log zerolog.Logger) *Client {
	return &Client{log: log}
}

// Authenticate always succeeds.
func (c *Client) Authenticate(_ context.Context, identity, _ string) error {
	c.log.Info().Str("identity", identity).Msg("dry run: login skipped")
	return nil
}

// LookupID returns a deterministic id for handle.
func (c *Client) LookupID(_ context.Context, handle string) (string, bool, error) {
	return FakeID(handle), true, nil
}

// Deliver records the message instead of sending it.
func (c *Client) Deliver(_ context.Context, id, message string) error {
	c.mu.Lock()
	c.deliveries = append(c.deliveries, Delivery{ID: id, Message: message})
	c.mu.Unlock()

	c.log.Info().Str("id", id).Int("length", len(message)).Msg("dry run: message not sent")
	return nil
}

// Deliveries returns a copy of the recorded sends in order.
func (c *Client) Deliveries() []Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Delivery, len(c.deliveries))
	copy(out, c.deliveries)
	return out
}

// FakeID is the id LookupID assigns to handle.
func FakeID(handle string) string {
	return uuid.NewSHA1(namespace, []byte(handle)).String()
}
