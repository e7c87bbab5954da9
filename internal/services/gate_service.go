package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mhartsell/gatehouse/internal/auth"
	"github.com/mhartsell/gatehouse/internal/metrics"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/ratelimit"
	pkglogger "github.com/mhartsell/gatehouse/pkg/logger"
)

// Reject reasons returned by gate validators. They double as the
// machine-readable error codes in failure responses.
const (
	ReasonInvalidToken  = "invalid_token"
	ReasonBotDetected   = "bot_detected"
	ReasonRateLimited   = "rate_limited"
	ReasonAccountLocked = "account_locked"
)

// Rate-limit actions namespacing the counter keys.
const (
	ActionLoginThrottle = "login"
	ActionBruteForce    = "brute_force"
)

// LoginAttempt carries everything the gate needs to judge a single
// request. It is built once per request and never shared between
// requests; Counters is the request-scoped read cache over the durable
// counter store.
type LoginAttempt struct {
	IP          string
	Username    string
	Password    string
	Remember    bool
	FormToken   string
	TokenAction string
	Honeypot    string
	RenderedAt  string
	RedirectTo  string
	Options     models.SecurityOptions
	Counters    ratelimit.CounterStore
	StartedAt   time.Time
}

// Rejection is a terminal verdict from a single validator. RetryAfter
// is zero when the client cannot simply wait the failure out. Quiet
// suppresses the rejection log line for routine noise such as a form
// posted with no token at all.
type Rejection struct {
	Reason     string
	Message    string
	RetryAfter time.Duration
	Quiet      bool
}

// A LoginValidator inspects one aspect of an attempt. Returning nil
// passes the attempt to the next validator in the chain.
type LoginValidator interface {
	Name() string
	Check(ctx context.Context, attempt *LoginAttempt) (*Rejection, error)
}

// Gate runs the ordered validator chain. The first rejection wins and
// later validators never run, so a token failure never consumes a
// lockout attempt.
type Gate struct {
	validators []LoginValidator
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewGate(logger *slog.Logger, m *metrics.Metrics, validators ...LoginValidator) *Gate {
	return &Gate{
		validators: validators,
		logger:     logger,
		metrics:    m,
	}
}

// ValidatorNames lists the chain in evaluation order. The conflict
// scanner uses it to report what guards an extension may be fighting.
func (g *Gate) ValidatorNames() []string {
	names := make([]string, 0, len(g.validators))
	for _, v := range g.validators {
		names = append(names, v.Name())
	}
	return names
}

// Evaluate runs the chain. A non-nil Rejection means the attempt must
// fail without touching credentials or counters.
func (g *Gate) Evaluate(ctx context.Context, attempt *LoginAttempt) (*Rejection, error) {
	for _, v := range g.validators {
		rejection, err := v.Check(ctx, attempt)
		if err != nil {
			return nil, err
		}
		if rejection != nil {
			g.metrics.GateRejections.WithLabelValues(rejection.Reason).Inc()
			if !rejection.Quiet {
				g.logger.Warn("login attempt rejected",
					"validator", v.Name(),
					"reason", rejection.Reason,
					"ip", attempt.IP,
				)
			}
			return rejection, nil
		}
	}
	return nil, nil
}

// FormTokenValidator rejects attempts whose single-use form token is
// missing, expired, replayed, or bound to a different action.
type FormTokenValidator struct {
	tokens *auth.FormTokenManager
}

func NewFormTokenValidator(tokens *auth.FormTokenManager) *FormTokenValidator {
	return &FormTokenValidator{tokens: tokens}
}

func (v *FormTokenValidator) Name() string { return "form_token" }

func (v *FormTokenValidator) Check(_ context.Context, attempt *LoginAttempt) (*Rejection, error) {
	if !v.tokens.Validate(attempt.FormToken, attempt.TokenAction) {
		return &Rejection{
			Reason:  ReasonInvalidToken,
			Message: "Your session expired. Please reload the page and try again.",
			// A form posted with no token at all is stale-cache noise,
			// not an attack worth a log line.
			Quiet: attempt.FormToken == "",
		}, nil
	}
	return nil, nil
}

// HoneypotValidator rejects attempts that filled the hidden field
// faster than a human could. Suspect verdicts (browser autofill,
// missing timestamp) pass through with a log line only.
type HoneypotValidator struct {
	honeypot *auth.Honeypot
	logger   *slog.Logger
	now      func() time.Time
}

func NewHoneypotValidator(honeypot *auth.Honeypot, logger *slog.Logger) *HoneypotValidator {
	return &HoneypotValidator{honeypot: honeypot, logger: logger, now: time.Now}
}

func (v *HoneypotValidator) Name() string { return "honeypot" }

func (v *HoneypotValidator) Check(_ context.Context, attempt *LoginAttempt) (*Rejection, error) {
	verdict := v.honeypot.Inspect(attempt.Honeypot, attempt.RenderedAt, v.now())
	switch verdict {
	case auth.HoneypotBot:
		return &Rejection{
			Reason:  ReasonBotDetected,
			Message: "Login failed. Please try again.",
		}, nil
	case auth.HoneypotSuspect:
		v.logger.Info("honeypot field filled, treating as autofill", "ip", attempt.IP)
	}
	return nil, nil
}

// ThrottleValidator enforces the global per-IP attempt ceiling. It only
// reads the counter; failures are recorded after the whole attempt
// resolves, so a throttled request cannot dig itself deeper.
type ThrottleValidator struct {
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewThrottleValidator(limit int, window time.Duration, logger *slog.Logger) *ThrottleValidator {
	return &ThrottleValidator{limit: limit, window: window, logger: logger}
}

func (v *ThrottleValidator) Name() string { return "ip_throttle" }

func (v *ThrottleValidator) Check(ctx context.Context, attempt *LoginAttempt) (*Rejection, error) {
	key := ratelimit.Key{Identity: attempt.IP, Action: ActionLoginThrottle}
	over, err := attempt.Counters.IsOver(ctx, key, v.limit)
	if err != nil {
		// A counter-store outage must not block every login; the
		// attempt still has to pass credential verification.
		v.logger.Error("throttle check unavailable, allowing attempt", "ip", attempt.IP, "error", err)
		return nil, nil
	}
	if over {
		return &Rejection{
			Reason:     ReasonRateLimited,
			Message:    "Too many login attempts. Please wait before trying again.",
			RetryAfter: v.window,
		}, nil
	}
	return nil, nil
}

// LockoutValidator enforces the per-IP-and-username failure threshold
// configured by the administrator. The username goes into the key as a
// salted hash so the durable store never sees it raw.
type LockoutValidator struct {
	salt   string
	logger *slog.Logger
}

func NewLockoutValidator(usernameSalt string, logger *slog.Logger) *LockoutValidator {
	return &LockoutValidator{salt: usernameSalt, logger: logger}
}

func (v *LockoutValidator) Name() string { return "lockout" }

// LockoutKey builds the counter key shared by the validator and the
// attempt tracker. Both sides must agree or lockouts never trip.
func LockoutKey(ip, username, salt string) ratelimit.Key {
	return ratelimit.Key{
		Identity: ip + "+" + pkglogger.HashUsername(username, salt),
		Action:   ActionBruteForce,
	}
}

func (v *LockoutValidator) Check(ctx context.Context, attempt *LoginAttempt) (*Rejection, error) {
	key := LockoutKey(attempt.IP, attempt.Username, v.salt)
	over, err := attempt.Counters.IsOver(ctx, key, attempt.Options.MaxLoginAttempts)
	if err != nil {
		v.logger.Error("lockout check unavailable, allowing attempt", "ip", attempt.IP, "error", err)
		return nil, nil
	}
	if over {
		lockout := time.Duration(attempt.Options.LockoutSeconds) * time.Second
		return &Rejection{
			Reason:     ReasonAccountLocked,
			Message:    "Too many failed attempts for this account. Please try again later.",
			RetryAfter: lockout,
		}, nil
	}
	return nil, nil
}
