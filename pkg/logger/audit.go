package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType    string
	IPAddress    string
	UsernameHash string
	Success      bool
	Reason       string
	Metadata     map[string]string
}

// AuditLogger provides structured audit logging for the login pipeline
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogLoginAttempt logs the outcome of a login attempt or gate rejection.
func (al *AuditLogger) LogLoginAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "login"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UsernameHash != "" {
		attrs = append(attrs, slog.String("username_hash", event.UsernameHash))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogConfigChange logs option writes and automated corrections.
func (al *AuditLogger) LogConfigChange(eventType, actor string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "config"),
		slog.String("event_type", eventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if actor != "" {
		attrs = append(attrs, slog.String("actor", actor))
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
