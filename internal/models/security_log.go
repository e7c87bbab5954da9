package models

import "time"

// Security log event types.
const (
	EventLockout       = "lockout"
	EventBotDetected   = "bot_detected"
	EventConflictFound = "conflict_found"
	EventSettingsFix   = "settings_fix"
)

// SecurityLogEntry is one row in the capped recent-security-events list.
// UsernameHash is a salted hash; raw usernames are never persisted here.
type SecurityLogEntry struct {
	ID           string    `db:"id"`
	EventType    string    `db:"event_type"`
	IPAddress    string    `db:"ip_address"`
	UsernameHash string    `db:"username_hash"`
	Detail       string    `db:"detail"`
	CreatedAt    time.Time `db:"created_at"`
}

// Notice is a dismissible admin-visible warning produced by self-healing
// downgrades and conflict detection.
type Notice struct {
	ID        string    `db:"id"`
	Code      string    `db:"code"`
	Message   string    `db:"message"`
	Dismissed bool      `db:"dismissed"`
	CreatedAt time.Time `db:"created_at"`
}
