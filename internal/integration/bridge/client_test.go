package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/core/settings"
)

// memSettings is an in-memory settings.Store.
type memSettings struct {
	mu      sync.Mutex
	entries map[string]settings.Settings
}

func newMemSettings() *memSettings {
	return &memSettings{entries: make(map[string]settings.Settings)}
}

func (m *memSettings) Load(_ context.Context, identity string) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.entries[identity]
	if !ok {
		return settings.Settings{}, settings.ErrNotFound
	}
	return s, nil
}

func (m *memSettings) Save(_ context.Context, identity string, s settings.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[identity] = s
	return nil
}

func (m *memSettings) Delete(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, identity)
	return nil
}

// fakeBridge is a scripted bridge server.
type fakeBridge struct {
	t        *testing.T
	mu       sync.Mutex
	calls    []string
	handlers map[string]http.HandlerFunc
}

func newFakeBridge(t *testing.T) (*fakeBridge, *httptest.Server) {
	fb := &fakeBridge{t: t, handlers: make(map[string]http.HandlerFunc)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())

		fb.mu.Lock()
		fb.calls = append(fb.calls, r.URL.Path)
		h, ok := fb.handlers[r.URL.Path]
		fb.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(server.Close)
	return fb, server
}

func (fb *fakeBridge) handle(path string, h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handlers[path] = h
}

func (fb *fakeBridge) callCount(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, c := range fb.calls {
		if c == path {
			n++
		}
	}
	return n
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newClient(server *httptest.Server, store settings.Store) *Client {
	return New(Options{
		BaseURL:    server.URL + "/",
		HTTPClient: server.Client(),
		Settings:   store,
		Logger:     zerolog.Nop(),
	})
}

func TestAuthenticate_Success(t *testing.T) {
	fb, server := newFakeBridge(t)
	fb.handle(pathLogin, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.Form.Get("username"))
		assert.Equal(t, "pw", r.Form.Get("password"))
		respond(http.StatusOK, `"sid-123"`)(w, r)
	})

	store := newMemSettings()
	client := newClient(server, store)

	require.NoError(t, client.Authenticate(context.Background(), "alice", "pw"))
	assert.Equal(t, "sid-123", client.SessionID())

	saved, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "sid-123", saved.SessionID)
}

// passwordCheckingLogin accepts only password "pw" and echoes the session id
// hint back when one is sent.
func passwordCheckingLogin(t *testing.T, wantHint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantHint, r.Form.Get("sessionid"))
		if r.Form.Get("password") != "pw" {
			respond(http.StatusBadRequest, `{"detail":"The password you entered is incorrect","exc_type":"BadPassword"}`)(w, r)
			return
		}
		sid := r.Form.Get("sessionid")
		if sid == "" {
			sid = "fresh-sid"
		}
		respond(http.StatusOK, `"`+sid+`"`)(w, r)
	}
}

func TestAuthenticate_SendsStoredSessionAsHint(t *testing.T) {
	fb, server := newFakeBridge(t)
	fb.handle(pathLogin, passwordCheckingLogin(t, "stored-sid"))

	store := newMemSettings()
	require.NoError(t, store.Save(context.Background(), "alice", settings.Settings{SessionID: "stored-sid"}))
	client := newClient(server, store)

	require.NoError(t, client.Authenticate(context.Background(), "alice", "pw"))
	assert.Equal(t, "stored-sid", client.SessionID())
	assert.Equal(t, 1, fb.callCount(pathLogin))

	saved, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "stored-sid", saved.SessionID)
	assert.False(t, saved.UpdatedAt.IsZero())
}

func TestAuthenticate_StoredSessionDoesNotBypassSecret(t *testing.T) {
	fb, server := newFakeBridge(t)
	fb.handle(pathLogin, passwordCheckingLogin(t, "stored-sid"))

	store := newMemSettings()
	require.NoError(t, store.Save(context.Background(), "alice", settings.Settings{SessionID: "stored-sid"}))
	client := newClient(server, store)

	err := client.Authenticate(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BadPassword")
	assert.Empty(t, client.SessionID())
	assert.Equal(t, 1, fb.callCount(pathLogin))

	_, _, err = client.LookupID(context.Background(), "bob")
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuthenticate_StaleHintReplaced(t *testing.T) {
	fb, server := newFakeBridge(t)
	fb.handle(pathLogin, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stale", r.Form.Get("sessionid"))
		respond(http.StatusOK, `"fresh-sid"`)(w, r)
	})

	store := newMemSettings()
	require.NoError(t, store.Save(context.Background(), "alice", settings.Settings{SessionID: "stale"}))
	client := newClient(server, store)

	require.NoError(t, client.Authenticate(context.Background(), "alice", "pw"))
	assert.Equal(t, "fresh-sid", client.SessionID())

	saved, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "fresh-sid", saved.SessionID)
}

func TestAuthenticate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  string
		wantError string
	}{
		{
			name:     "challenge",
			status:   http.StatusBadRequest,
			body:     `{"detail":"checkpoint","exc_type":"ChallengeRequired","challenge_url":"https://example.com/c"}`,
			wantKind: "challenge",
		},
		{
			name:     "two factor",
			status:   http.StatusBadRequest,
			body:     `{"detail":"code sent","exc_type":"TwoFactorRequired","contact_point":"+1***55"}`,
			wantKind: "two_factor",
		},
		{
			name:      "bad password",
			status:    http.StatusBadRequest,
			body:      `{"detail":"The password you entered is incorrect","exc_type":"BadPassword"}`,
			wantError: "BadPassword: The password you entered is incorrect",
		},
		{
			name:      "non json error body",
			status:    http.StatusBadGateway,
			body:      `upstream down`,
			wantError: "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, server := newFakeBridge(t)
			fb.handle(pathLogin, respond(tt.status, tt.body))
			client := newClient(server, nil)

			err := client.Authenticate(context.Background(), "alice", "pw")
			require.Error(t, err)
			assert.Empty(t, client.SessionID())

			var challenge *messaging.ChallengeError
			if tt.wantKind != "" {
				require.ErrorAs(t, err, &challenge)
				assert.Equal(t, tt.wantKind, challenge.Kind)
				return
			}

			assert.False(t, errors.As(err, &challenge))
			assert.EqualError(t, err, tt.wantError)
		})
	}
}

func TestAuthenticate_ChallengeDetail(t *testing.T) {
	fb, server := newFakeBridge(t)
	fb.handle(pathLogin, respond(http.StatusBadRequest,
		`{"detail":"checkpoint","exc_type":"ChallengeRequired","challenge_url":"https://example.com/c","contact_point":"a***@x.com"}`))
	client := newClient(server, nil)

	err := client.Authenticate(context.Background(), "alice", "pw")

	var challenge *messaging.ChallengeError
	require.ErrorAs(t, err, &challenge)
	assert.Equal(t, messaging.Challenge{
		Kind:    "challenge",
		URL:     "https://example.com/c",
		Contact: "a***@x.com",
		Detail:  "checkpoint",
	}, challenge.Challenge)
}

func loggedInClient(t *testing.T, fb *fakeBridge, server *httptest.Server) *Client {
	t.Helper()
	fb.handle(pathLogin, respond(http.StatusOK, `"sid"`))
	client := newClient(server, nil)
	require.NoError(t, client.Authenticate(context.Background(), "alice", "pw"))
	return client
}

func TestLookupID(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantID    string
		wantFound bool
		wantErr   bool
	}{
		{name: "string id", status: http.StatusOK, body: `"1234"`, wantID: "1234", wantFound: true},
		{name: "numeric id", status: http.StatusOK, body: `5678`, wantID: "5678", wantFound: true},
		{name: "empty id", status: http.StatusOK, body: `""`},
		{name: "user not found", status: http.StatusBadRequest, body: `{"detail":"not found","exc_type":"UserNotFound"}`},
		{name: "404", status: http.StatusNotFound, body: ``},
		{name: "server error", status: http.StatusInternalServerError, body: `{"detail":"boom"}`, wantErr: true},
		{name: "malformed", status: http.StatusOK, body: `{"id":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, server := newFakeBridge(t)
			client := loggedInClient(t, fb, server)
			fb.handle(pathUserID, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "sid", r.Form.Get("sessionid"))
				assert.Equal(t, "bob", r.Form.Get("username"))
				respond(tt.status, tt.body)(w, r)
			})

			id, found, err := client.LookupID(context.Background(), "bob")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestDeliver(t *testing.T) {
	fb, server := newFakeBridge(t)
	client := loggedInClient(t, fb, server)
	fb.handle(pathDirectSend, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sid", r.Form.Get("sessionid"))
		assert.Equal(t, "1234", r.Form.Get("user_ids"))
		assert.Equal(t, "hello there", r.Form.Get("text"))
		respond(http.StatusOK, `{"id":"thread-1"}`)(w, r)
	})

	require.NoError(t, client.Deliver(context.Background(), "1234", "hello there"))
	assert.Equal(t, 1, fb.callCount(pathDirectSend))
}

func TestDeliver_Error(t *testing.T) {
	fb, server := newFakeBridge(t)
	client := loggedInClient(t, fb, server)
	fb.handle(pathDirectSend, respond(http.StatusBadRequest, `{"detail":"feedback_required","exc_type":"FeedbackRequired"}`))

	err := client.Deliver(context.Background(), "1234", "hi")
	assert.EqualError(t, err, "FeedbackRequired: feedback_required")
}

func TestNotAuthenticated(t *testing.T) {
	fb, server := newFakeBridge(t)
	client := newClient(server, nil)

	_, _, err := client.LookupID(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, client.Deliver(context.Background(), "1", "hi"), ErrNotAuthenticated)
	assert.Zero(t, fb.callCount(pathUserID))
}

func TestRequestTimeout(t *testing.T) {
	fb, server := newFakeBridge(t)
	fb.handle(pathLogin, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		respond(http.StatusOK, `"sid"`)(w, r)
	})

	client := New(Options{BaseURL: server.URL, HTTPClient: server.Client(), Timeout: 20 * time.Millisecond})

	err := client.Authenticate(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request /auth/login")
}

func TestRunnerIntegration(t *testing.T) {
	fb, server := newFakeBridge(t)
	fb.handle(pathLogin, respond(http.StatusOK, `"sid"`))
	fb.handle(pathUserID, func(w http.ResponseWriter, r *http.Request) {
		if r.Form.Get("username") == "ghost" {
			respond(http.StatusBadRequest, `{"exc_type":"UserNotFound"}`)(w, r)
			return
		}
		respond(http.StatusOK, `"42"`)(w, r)
	})
	fb.handle(pathDirectSend, respond(http.StatusOK, `{}`))

	runner := messaging.NewRunner("alice", newClient(server, nil),
		messaging.WithSleeper(func(context.Context, time.Duration) error { return nil }))

	out := runner.Login(context.Background(), "alice", "pw")
	require.True(t, out.OK())

	results := runner.SendBatch(context.Background(), []string{"bob", "ghost"}, "hi", messaging.DelayRange{})
	assert.Equal(t, []messaging.ItemResult{
		{Recipient: "bob", Success: true},
		{Recipient: "ghost", Error: messaging.ReasonRecipientNotFound},
	}, results)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, HTTPClient: server.Client(), Timeout: time.Second})
	assert.NoError(t, client.Ping(context.Background()))

	server.Close()
	assert.Error(t, client.Ping(context.Background()))
}
