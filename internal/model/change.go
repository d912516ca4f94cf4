package model

import "time"

// ChangeSource records which path produced a change event.
type ChangeSource string

const (
	SourceScheduledRefresh ChangeSource = "scheduled_refresh"
	SourceWebhook          ChangeSource = "webhook"
)

// Snapshot is a point-in-time view of a person's tracked profile fields.
type Snapshot struct {
	Employer    string `json:"employer"`
	Title       string `json:"title"`
	Active      bool   `json:"active"`
	Email       string `json:"email,omitempty"`
	Connections int    `json:"connections,omitempty"`
}

// ChangeEvent is a single detected difference between two snapshots.
// Events are append-only: once stored they are never mutated.
type ChangeEvent struct {
	ID         string       `json:"id"`
	PersonID   string       `json:"person_id"`
	Field      string       `json:"field"`
	OldValue   string       `json:"old_value"`
	NewValue   string       `json:"new_value"`
	Critical   bool         `json:"critical"`
	Source     ChangeSource `json:"source"`
	DetectedAt time.Time    `json:"detected_at"`
	Notified   bool         `json:"notified"`
}
