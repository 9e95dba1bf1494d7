// Package messaging holds login state for one account and drives paced batch
// sends through an injected Client.
package messaging

import (
	"context"
	"fmt"
)

// Client is the capability the runner calls through. Implementations wrap the
// platform client; tests use scripted stubs.
type Client interface {
	// Authenticate logs identity in. A *ChallengeError means the platform wants an
	// out-of-band verification step; any other error is an outright failure.
	Authenticate(ctx context.Context, identity, secret string) error
	// LookupID resolves a handle to the platform's numeric id. found is false when
	// the handle does not exist; err is reserved for transport problems.
	LookupID(ctx context.Context, handle string) (id string, found bool, err error)
	// Deliver sends message to the recipient with the given id.
	Deliver(ctx context.Context, id, message string) error
}

// Challenge describes a verification step demanded by the platform.
type Challenge struct {
	Kind    string `json:"kind"`
	URL     string `json:"url,omitempty"`
	Contact string `json:"contact,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// ChallengeError is returned by Client.Authenticate when login cannot complete
// without verification.
type ChallengeError struct {
	Challenge
}

func (e *ChallengeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("challenge required (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("challenge required (%s)", e.Kind)
}
