package models

import "time"

// ConflictType classifies where an incompatibility was found.
type ConflictType string

const (
	ConflictFunction ConflictType = "function"
	ConflictHook     ConflictType = "hook"
	ConflictPlugin   ConflictType = "plugin"
	ConflictSettings ConflictType = "settings"
)

// ConflictSeverity orders findings for the admin surface.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

// ConflictRecord is one detected incompatibility. FixID, when non-empty,
// names a known idempotent remediation the admin can trigger.
type ConflictRecord struct {
	Type        ConflictType     `json:"type"`
	Name        string           `json:"name"`
	Severity    ConflictSeverity `json:"severity"`
	Description string           `json:"description"`
	FixID       string           `json:"fix_id,omitempty"`
}

// FixAction records one applied remediation, kept as a capped ordered list.
type FixAction struct {
	ID        string    `db:"id"`
	FixID     string    `db:"fix_id"`
	AppliedBy string    `db:"applied_by"`
	AppliedAt time.Time `db:"applied_at"`
}
