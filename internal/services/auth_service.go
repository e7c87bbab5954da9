package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/metrics"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/ratelimit"
	pkgauth "github.com/mhartsell/gatehouse/pkg/auth"
	pkglogger "github.com/mhartsell/gatehouse/pkg/logger"
)

// dummyHash burns a bcrypt comparison when the username does not
// exist, so unknown and known accounts fail in the same time.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// GenericLoginFailure is the one message every credential failure
// returns. Distinguishing unknown users from wrong passwords would
// hand attackers a username oracle.
const GenericLoginFailure = "Invalid username or password."

// UserRepository is the account lookup surface the auth service needs.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// LoginResult is a successful authentication outcome.
type LoginResult struct {
	User           *models.User
	Token          string
	Redirect       string
	SessionSeconds int
	Remember       bool
}

// AuthService runs the full login pipeline: gate, credential check,
// outcome tracking, session issuance, redirect decision. Every
// completed attempt, pass or fail, takes at least the configured
// attempt delay; only the cheapest bot rejections return early.
type AuthService struct {
	users     UserRepository
	options   OptionsReader
	counters  ratelimit.CounterStore
	gate      *Gate
	tracker   *AttemptTracker
	sessions  *auth.SessionManager
	redirects *RedirectService
	delay     *auth.AttemptDelay
	metrics   *metrics.Metrics
	logger    *slog.Logger
	salt      string
}

func NewAuthService(
	users UserRepository,
	options OptionsReader,
	counters ratelimit.CounterStore,
	gate *Gate,
	tracker *AttemptTracker,
	sessions *auth.SessionManager,
	redirects *RedirectService,
	delay *auth.AttemptDelay,
	m *metrics.Metrics,
	logger *slog.Logger,
	usernameSalt string,
) *AuthService {
	return &AuthService{
		users:     users,
		options:   options,
		counters:  counters,
		gate:      gate,
		tracker:   tracker,
		sessions:  sessions,
		redirects: redirects,
		delay:     delay,
		metrics:   m,
		logger:    logger,
		salt:      usernameSalt,
	}
}

// AttemptParams is the raw login submission after HTTP decoding.
type AttemptParams struct {
	IP          string
	Username    string
	Password    string
	Remember    bool
	FormToken   string
	TokenAction string
	Honeypot    string
	RenderedAt  string
	RedirectTo  string
}

// PrepareAttempt builds the request-scoped attempt context: security
// options loaded once, counters wrapped in a per-request read cache.
func (s *AuthService) PrepareAttempt(ctx context.Context, params AttemptParams) (*LoginAttempt, error) {
	opts, err := s.options.GetSecurityOptions(ctx)
	if err != nil {
		return nil, err
	}
	return &LoginAttempt{
		IP:          params.IP,
		Username:    pkglogger.TruncateUsername(params.Username),
		Password:    params.Password,
		Remember:    params.Remember,
		FormToken:   params.FormToken,
		TokenAction: params.TokenAction,
		Honeypot:    params.Honeypot,
		RenderedAt:  params.RenderedAt,
		RedirectTo:  params.RedirectTo,
		Options:     opts,
		Counters:    ratelimit.NewRequestCache(s.counters),
		StartedAt:   time.Now(),
	}, nil
}

// Login resolves one attempt. Exactly one of the three returns is
// meaningful: a result on success, a rejection when a gate validator
// refused the attempt, or ErrUnauthorized for bad credentials.
func (s *AuthService) Login(ctx context.Context, attempt *LoginAttempt) (*LoginResult, *Rejection, error) {
	rejection, err := s.gate.Evaluate(ctx, attempt)
	if err != nil {
		return nil, nil, err
	}
	if rejection != nil {
		s.metrics.LoginAttempts.WithLabelValues(rejection.Reason).Inc()
		// Token and bot rejections return immediately: those clients
		// are not measuring bcrypt timing, and stalling them would
		// just hold their connections open. Everything else waits out
		// the full attempt delay.
		if rejection.Reason != ReasonInvalidToken && rejection.Reason != ReasonBotDetected {
			s.delay.WaitFrom(attempt.StartedAt)
		}
		return nil, rejection, nil
	}

	user, err := s.verifyCredentials(ctx, attempt)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			if trackErr := s.tracker.RecordFailure(ctx, attempt); trackErr != nil {
				s.logger.Error("failed to record login failure", "error", trackErr)
			}
			s.metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
			s.delay.WaitFrom(attempt.StartedAt)
			return nil, nil, models.ErrUnauthorized
		}
		return nil, nil, err
	}

	if err := s.tracker.RecordSuccess(ctx, attempt); err != nil {
		s.logger.Error("failed to record login success", "error", err)
	}

	lifetime := time.Duration(attempt.Options.SessionSeconds) * time.Second
	token, err := s.sessions.Issue(user, lifetime, attempt.Remember)
	if err != nil {
		return nil, nil, err
	}

	redirect, err := s.redirects.Decide(ctx, user, attempt.RedirectTo, false)
	if err != nil {
		s.logger.Error("redirect decision failed, using native dashboard", "error", err)
		redirect = NativeDashboardPath
	}

	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.delay.WaitFrom(attempt.StartedAt)

	return &LoginResult{
		User:           user,
		Token:          token,
		Redirect:       redirect,
		SessionSeconds: int(s.sessions.Lifetime(lifetime, attempt.Remember).Seconds()),
		Remember:       attempt.Remember,
	}, nil, nil
}

// verifyCredentials returns ErrUnauthorized for both unknown users and
// wrong passwords, spending a bcrypt comparison either way.
func (s *AuthService) verifyCredentials(ctx context.Context, attempt *LoginAttempt) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, attempt.Username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			_ = pkgauth.ComparePassword(dummyHash, attempt.Password)
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}
	if err := pkgauth.ComparePassword(user.PasswordHash, attempt.Password); err != nil {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}

// ValidateSession parses and verifies a session token.
func (s *AuthService) ValidateSession(tokenString string) (*models.SessionClaims, error) {
	return s.sessions.Validate(tokenString)
}
