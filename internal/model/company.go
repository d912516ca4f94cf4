package model

import "time"

// Company owns a buyer group and carries the regeneration flag.
type Company struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Domain           string    `json:"domain"`
	RerunNeeded      bool      `json:"rerun_needed"`
	RerunReason      string    `json:"rerun_reason,omitempty"`
	RerunRequestedAt time.Time `json:"rerun_requested_at,omitzero"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
