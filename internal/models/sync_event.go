package models

import (
	"encoding/json"
	"time"
)

// SyncEventType identifies which option record an event belongs to.
type SyncEventType string

const (
	SyncLoginOptions    SyncEventType = "login_options"
	SyncSecurityOptions SyncEventType = "security_options"
)

// SyncEventStatus is the processing state of a queued settings change.
type SyncEventStatus string

const (
	SyncPending   SyncEventStatus = "pending"
	SyncCompleted SyncEventStatus = "completed"
	SyncFailed    SyncEventStatus = "failed"
)

// SyncEvent is one recorded option change awaiting or having completed
// its side effects (cache invalidation, rewrite flush, style regeneration).
// Events are only removed by cap or age pruning, never on completion.
type SyncEvent struct {
	ID        string          `db:"id"`
	Type      SyncEventType   `db:"event_type"`
	OldValue  json.RawMessage `db:"old_value"`
	NewValue  json.RawMessage `db:"new_value"`
	Status    SyncEventStatus `db:"status"`
	Error     *string         `db:"error"`
	CreatedAt time.Time       `db:"created_at"`
}
