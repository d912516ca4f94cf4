package model

import "time"

// NotificationPriority orders feed entries for the consumer.
type NotificationPriority string

const (
	PriorityHigh   NotificationPriority = "high"
	PriorityNormal NotificationPriority = "normal"
	PriorityLow    NotificationPriority = "low"
)

// Notification is an unacknowledged change summary for one person,
// accumulated for an external consumer (e.g., an assistant panel).
// Entries are acknowledged by the reader, never deleted here.
type Notification struct {
	ID           string               `json:"id"`
	PersonID     string               `json:"person_id"`
	PersonName   string               `json:"person_name"`
	CompanyName  string               `json:"company_name"`
	Changes      []ChangeEvent        `json:"changes"`
	Priority     NotificationPriority `json:"priority"`
	Acknowledged bool                 `json:"acknowledged"`
	CreatedAt    time.Time            `json:"created_at"`
}
