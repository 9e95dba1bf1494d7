// Package courier orchestrates sessions, logins and batch sends on top of the
// session registry and the report store.
package courier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/core/report"
	"github.com/hay-kot/courier/internal/core/session"
	"github.com/hay-kot/courier/pkg/randid"
)

// ErrSessionNotFound is returned for unknown or expired session tokens.
var ErrSessionNotFound = errors.New("session not found or expired")

// LoginResult carries the session token for a successful login. Token is empty
// for any other outcome.
type LoginResult struct {
	Token   string
	Outcome messaging.LoginOutcome
}

// Status describes a session's login state.
type Status struct {
	LoggedIn     bool      `json:"is_logged_in"`
	Identity     string    `json:"username"`
	LastActivity time.Time `json:"last_activity"`
}

// Service orchestrates courier operations.
type Service struct {
	sessions *session.Registry
	reports  report.Store
	now      func() time.Time
	log      zerolog.Logger
}

// New creates a new Service.
func New(sessions *session.Registry, reports report.Store, log zerolog.Logger) *Service {
	return &Service{
		sessions: sessions,
		reports:  reports,
		now:      time.Now,
		log:      log,
	}
}

// Sessions exposes the registry, e.g. for the background sweeper.
func (s *Service) Sessions() *session.Registry {
	return s.sessions
}

// CreateSession registers a logged-out session for identity.
func (s *Service) CreateSession(identity string) (string, error) {
	token, err := s.sessions.Create(identity)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// Login creates a session and logs it in. Unless the outcome is a success the
// session is removed again, so a failed or challenged login leaves no session
// behind.
func (s *Service) Login(ctx context.Context, identity, secret string) (LoginResult, error) {
	token, err := s.CreateSession(identity)
	if err != nil {
		return LoginResult{}, err
	}

	outcome, err := s.LoginSession(ctx, token, identity, secret)
	if err != nil {
		return LoginResult{}, err
	}

	if !outcome.OK() {
		s.sessions.Delete(token)
		s.log.Info().Str("identity", identity).Str("status", string(outcome.Status)).Msg("login rolled back")
		return LoginResult{Outcome: outcome}, nil
	}

	return LoginResult{Token: token, Outcome: outcome}, nil
}

// LoginSession logs in the runner of an existing session.
func (s *Service) LoginSession(ctx context.Context, token, identity, secret string) (messaging.LoginOutcome, error) {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return messaging.LoginOutcome{}, ErrSessionNotFound
	}

	outcome := sess.Runner.Login(ctx, identity, secret)
	s.sessions.Touch(token)
	return outcome, nil
}

// Logout logs the session's runner out and removes the session. Unknown tokens
// are ignored.
func (s *Service) Logout(token string) {
	if sess, ok := s.sessions.Get(token); ok {
		sess.Runner.Logout()
		s.log.Info().Str("identity", sess.Identity).Msg("logged out")
	}
	s.sessions.Delete(token)
}

// Authorize returns a snapshot of the live session for token and records
// activity on it.
func (s *Service) Authorize(token string) (session.Info, error) {
	info, ok := s.sessions.Touch(token)
	if !ok {
		return session.Info{}, ErrSessionNotFound
	}
	return info, nil
}

// Status reports the login state of the session for token.
func (s *Service) Status(token string) (Status, error) {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return Status{}, ErrSessionNotFound
	}

	st := sess.Runner.Status()
	return Status{
		LoggedIn:     st.LoggedIn,
		Identity:     st.Identity,
		LastActivity: sess.LastActivity,
	}, nil
}

// ListActive returns snapshots of all live sessions.
func (s *Service) ListActive() []session.Info {
	return s.sessions.ListActive()
}

// SendBatch validates req and sends it through the session's runner. The
// resulting report is persisted; a storage failure is logged and does not fail
// the call.
func (s *Service) SendBatch(ctx context.Context, token string, req SendRequest) (report.Report, error) {
	if err := req.Validate(); err != nil {
		return report.Report{}, fmt.Errorf("invalid request: %w", err)
	}

	sess, ok := s.sessions.Get(token)
	if !ok {
		return report.Report{}, ErrSessionNotFound
	}
	s.sessions.Touch(token)

	if !sess.Runner.LoggedIn() {
		return report.Report{}, messaging.ErrNotLoggedIn
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = randid.Generate(6)
	}
	log := s.log.With().Str("batch_id", batchID).Str("identity", sess.Identity).Logger()
	log.Info().Int("recipients", len(req.Recipients)).Msg("starting batch")

	results := sess.Runner.SendBatch(ctx, req.Recipients, req.Message, req.Delay)
	s.sessions.Touch(token)

	rep, err := report.New(sess.Identity, req.Message, results, s.now())
	if err != nil {
		return report.Report{}, fmt.Errorf("build report: %w", err)
	}
	rep.BatchID = batchID

	log.Info().
		Str("report_id", rep.ID).
		Int("successful", rep.Successful).
		Int("failed", rep.Failed).
		Msg("batch complete")

	if s.reports != nil {
		// save even when ctx was cancelled mid-batch
		if err := s.reports.Save(context.WithoutCancel(ctx), rep); err != nil {
			log.Error().Err(err).Msg("failed to save report")
		}
	}

	return rep, nil
}

// LatestReport returns the newest report for identity.
func (s *Service) LatestReport(ctx context.Context, identity string) (report.Report, error) {
	if s.reports == nil {
		return report.Report{}, report.ErrNotFound
	}
	return s.reports.Latest(ctx, identity)
}
