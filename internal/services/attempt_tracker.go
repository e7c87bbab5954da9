package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mhartsell/gatehouse/internal/metrics"
	"github.com/mhartsell/gatehouse/internal/models"
	"github.com/mhartsell/gatehouse/internal/ratelimit"
	pkglogger "github.com/mhartsell/gatehouse/pkg/logger"
)

// AlertSender delivers lockout notifications to the administrator.
type AlertSender interface {
	SendLockoutAlert(ctx context.Context, ip, usernameHash string, failures int) error
}

// TransientStore is the TTL key-value surface the tracker needs for
// alert dedup markers.
type TransientStore interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// SecurityLogWriter records security-relevant events for the admin UI.
type SecurityLogWriter interface {
	Insert(ctx context.Context, entry *models.SecurityLogEntry) error
}

// AttemptTracker records login outcomes against the durable counters.
// Failures bump both the global per-IP throttle and the per-account
// lockout counter; a success clears the lockout counter only, so the
// global throttle still caps rapid valid logins from one address.
type AttemptTracker struct {
	transients  TransientStore
	secLog      SecurityLogWriter
	alerts      AlertSender
	metrics     *metrics.Metrics
	logger      *slog.Logger
	audit       *pkglogger.AuditLogger
	salt        string
	loginWindow time.Duration
	alertWindow time.Duration
}

func NewAttemptTracker(
	transients TransientStore,
	secLog SecurityLogWriter,
	alerts AlertSender,
	m *metrics.Metrics,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	usernameSalt string,
	loginWindow, alertWindow time.Duration,
) *AttemptTracker {
	return &AttemptTracker{
		transients:  transients,
		secLog:      secLog,
		alerts:      alerts,
		metrics:     m,
		logger:      logger,
		audit:       audit,
		salt:        usernameSalt,
		loginWindow: loginWindow,
		alertWindow: alertWindow,
	}
}

// RecordFailure bumps the counters for a failed credential check and,
// when the lockout threshold is crossed, logs the lockout and sends at
// most one alert per (ip, account) per alert window.
func (t *AttemptTracker) RecordFailure(ctx context.Context, attempt *LoginAttempt) error {
	hash := pkglogger.HashUsername(attempt.Username, t.salt)

	globalKey := ratelimit.Key{Identity: attempt.IP, Action: ActionLoginThrottle}
	if _, err := attempt.Counters.Increment(ctx, globalKey, t.loginWindow); err != nil {
		return fmt.Errorf("incrementing throttle counter: %w", err)
	}

	lockoutTTL := time.Duration(attempt.Options.LockoutSeconds) * time.Second
	lockoutKey := LockoutKey(attempt.IP, attempt.Username, t.salt)
	counter, err := attempt.Counters.Increment(ctx, lockoutKey, lockoutTTL)
	if err != nil {
		return fmt.Errorf("incrementing lockout counter: %w", err)
	}

	t.audit.LogLoginAttempt(pkglogger.AuditEvent{
		EventType:    "login_failure",
		IPAddress:    attempt.IP,
		UsernameHash: hash,
		Success:      false,
		Reason:       "invalid_credentials",
	})

	if counter.Count >= attempt.Options.MaxLoginAttempts {
		t.onLockout(ctx, attempt.IP, hash, counter.Count)
	}
	return nil
}

// RecordSuccess clears the lockout counter for this (ip, account)
// pair. Earlier failures from the same address against other accounts
// stay counted.
func (t *AttemptTracker) RecordSuccess(ctx context.Context, attempt *LoginAttempt) error {
	t.audit.LogLoginAttempt(pkglogger.AuditEvent{
		EventType:    "login_success",
		IPAddress:    attempt.IP,
		UsernameHash: pkglogger.HashUsername(attempt.Username, t.salt),
		Success:      true,
	})

	key := LockoutKey(attempt.IP, attempt.Username, t.salt)
	if err := attempt.Counters.Reset(ctx, key); err != nil {
		return fmt.Errorf("resetting lockout counter: %w", err)
	}
	return nil
}

func (t *AttemptTracker) onLockout(ctx context.Context, ip, usernameHash string, failures int) {
	t.metrics.Lockouts.Inc()

	entry := &models.SecurityLogEntry{
		EventType:    models.EventLockout,
		IPAddress:    ip,
		UsernameHash: usernameHash,
		Detail:       fmt.Sprintf("locked out after %d failures", failures),
		CreatedAt:    time.Now(),
	}
	if err := t.secLog.Insert(ctx, entry); err != nil {
		t.logger.Error("failed to record lockout", "error", err)
	}

	marker := fmt.Sprintf("alert_sent:%s:%s:%s", models.EventLockout, ip, usernameHash)
	var sent bool
	found, err := t.transients.Get(ctx, marker, &sent)
	if err != nil {
		t.logger.Error("failed to check alert marker", "error", err)
		return
	}
	if found {
		return
	}

	if t.alerts != nil {
		if err := t.alerts.SendLockoutAlert(ctx, ip, usernameHash, failures); err != nil {
			// Marker is still written: a broken mail path must not
			// turn into an alert storm on every subsequent failure.
			t.logger.Error("failed to send lockout alert", "error", err)
		}
	}
	if err := t.transients.Set(ctx, marker, true, t.alertWindow); err != nil {
		t.logger.Error("failed to write alert marker", "error", err)
	}
}
