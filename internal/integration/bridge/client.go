// Package bridge implements messaging.Client against a REST bridge service
// that wraps the platform's private API. Requests are form-encoded and
// successful responses are JSON.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/core/settings"
)

const maxResponseBytes = 1 << 20

// Bridge endpoints.
const (
	pathLogin      = "/auth/login"
	pathUserID     = "/user/id_from_username"
	pathDirectSend = "/direct/send"
)

// ErrNotAuthenticated is returned by LookupID and Deliver before a successful
// Authenticate.
var ErrNotAuthenticated = errors.New("bridge: not authenticated")

// challengeKinds maps bridge exception types to challenge kinds.
var challengeKinds = map[string]string{
	"ChallengeRequired":              "challenge",
	"TwoFactorRequired":              "two_factor",
	"RecaptchaChallengeForm":         "captcha",
	"SelectContactPointRecoveryForm": "contact_point",
}

// notFoundTypes are exception types that mean the handle does not exist.
var notFoundTypes = map[string]bool{
	"UserNotFound":      true,
	"UserNotFoundError": true,
}

// APIError is a non-2xx response from the bridge.
type APIError struct {
	StatusCode   int    `json:"-"`
	Type         string `json:"exc_type"`
	Detail       string `json:"detail"`
	ChallengeURL string `json:"challenge_url,omitempty"`
	ContactPoint string `json:"contact_point,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Type != "" && e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Type, e.Detail)
	case e.Detail != "":
		return e.Detail
	case e.Type != "":
		return e.Type
	default:
		return fmt.Sprintf("bridge returned status %d", e.StatusCode)
	}
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout bounds each request. Zero means no per-request timeout.
	Timeout time.Duration
	// Settings, when set, stores session ids so later logins can reuse them.
	Settings settings.Store
	Logger   zerolog.Logger
}

// Client talks to the bridge on behalf of one identity.
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	settings settings.Store
	log      zerolog.Logger

	mu        sync.RWMutex
	sessionID string
}

var _ messaging.Client = (*Client)(nil)

// New creates a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		timeout:  opts.Timeout,
		settings: opts.Settings,
		log:      opts.Logger,
	}
}

// SessionID returns the current bridge session id, empty before login.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Authenticate logs in identity with secret. A stored session id is sent
// along as a hint the bridge may reuse, but the secret is always checked.
func (c *Client) Authenticate(ctx context.Context, identity, secret string) error {
	form := url.Values{
		"username": {identity},
		"password": {secret},
	}
	if stored := c.storedSessionID(ctx, identity); stored != "" {
		form.Set("sessionid", stored)
	}

	var sid string
	if err := c.post(ctx, pathLogin, form, &sid); err != nil {
		return asChallenge(err)
	}
	if sid == "" {
		return fmt.Errorf("login: bridge returned an empty session id")
	}

	c.setSession(sid)

	if c.settings != nil {
		err := c.settings.Save(ctx, identity, settings.Settings{SessionID: sid, UpdatedAt: time.Now()})
		if err != nil {
			c.log.Warn().Err(err).Str("identity", identity).Msg("failed to store client settings")
		}
	}

	return nil
}

func (c *Client) storedSessionID(ctx context.Context, identity string) string {
	if c.settings == nil {
		return ""
	}

	stored, err := c.settings.Load(ctx, identity)
	if err != nil {
		if !errors.Is(err, settings.ErrNotFound) {
			c.log.Warn().Err(err).Str("identity", identity).Msg("failed to load client settings")
		}
		return ""
	}
	return stored.SessionID
}

// LookupID resolves handle to a user id.
func (c *Client) LookupID(ctx context.Context, handle string) (string, bool, error) {
	sid := c.SessionID()
	if sid == "" {
		return "", false, ErrNotAuthenticated
	}

	var raw json.RawMessage
	err := c.post(ctx, pathUserID, url.Values{
		"sessionid": {sid},
		"username":  {handle},
	}, &raw)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (notFoundTypes[apiErr.Type] || apiErr.StatusCode == http.StatusNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	id, err := decodeID(raw)
	if err != nil {
		return "", false, err
	}
	if id == "" {
		return "", false, nil
	}
	return id, true, nil
}

// Deliver sends message to the user with id.
func (c *Client) Deliver(ctx context.Context, id, message string) error {
	sid := c.SessionID()
	if sid == "" {
		return ErrNotAuthenticated
	}

	return c.post(ctx, pathDirectSend, url.Values{
		"sessionid": {sid},
		"user_ids":  {id},
		"text":      {message},
	}, nil)
}

// Ping checks that the bridge answers HTTP at its base URL. Any response
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach bridge: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	return nil
}

func (c *Client) setSession(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sid
}

// post sends form to path and decodes a successful JSON body into out. out may
// be nil to discard the body.
func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body := io.LimitReader(resp.Body, maxResponseBytes)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp.StatusCode, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(status int, body io.Reader) error {
	apiErr := &APIError{StatusCode: status}

	data, _ := io.ReadAll(body)
	if err := json.Unmarshal(data, apiErr); err != nil {
		apiErr.Detail = strings.TrimSpace(string(data))
	}
	return apiErr
}

// asChallenge converts challenge exception types into a *messaging.ChallengeError.
func asChallenge(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	kind, ok := challengeKinds[apiErr.Type]
	if !ok {
		return err
	}

	return &messaging.ChallengeError{Challenge: messaging.Challenge{
		Kind:    kind,
		URL:     apiErr.ChallengeURL,
		Contact: apiErr.ContactPoint,
		Detail:  apiErr.Detail,
	}}
}

// decodeID accepts an id encoded as a JSON string or number.
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("decode user id: unexpected value %s", raw)
}
