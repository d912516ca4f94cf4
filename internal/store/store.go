// Package store defines persistence for persons, companies, change history
// and the notification feed.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/model"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the roster system.
type Store interface {
	// Persons
	CreatePerson(ctx context.Context, p *model.Person) error
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	GetPersonByProfileID(ctx context.Context, profileID string) (*model.Person, error)
	UpdatePerson(ctx context.Context, p *model.Person) error
	// ListDue returns members of a tier whose next refresh is at or before
	// now, oldest due first, capped at limit.
	ListDue(ctx context.Context, tier model.RefreshTier, now time.Time, limit int) ([]model.Person, error)
	ListMembers(ctx context.Context, companyID string) ([]model.Person, error)

	// Companies
	CreateCompany(ctx context.Context, c *model.Company) error
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	// MarkRerunNeeded sets the regeneration flag. Monotonic: returns true
	// only on the false→true transition, false when already set.
	MarkRerunNeeded(ctx context.Context, companyID, reason string, at time.Time) (bool, error)
	// ClearRerun resets the flag. Only the regeneration worker calls this.
	ClearRerun(ctx context.Context, companyID string) error

	// Change history (append-only)
	AppendChangeEvents(ctx context.Context, events []model.ChangeEvent) error
	ListChangeEvents(ctx context.Context, personID string, limit int) ([]model.ChangeEvent, error)
	// MarkEventsNotified flags a person's pending events as consumed.
	MarkEventsNotified(ctx context.Context, personID string) error

	// Profile snapshots (one per person, replaced on each refresh)
	GetSnapshot(ctx context.Context, personID string) (*model.Snapshot, error)
	SaveSnapshot(ctx context.Context, personID string, snap model.Snapshot) error

	// Notification feed
	AppendNotification(ctx context.Context, n *model.Notification) error
	ListUnacknowledged(ctx context.Context) ([]model.Notification, error)
	AcknowledgeByPerson(ctx context.Context, personID string) error

	// Webhook idempotency. SeenWebhook records the key and reports whether
	// it had been seen before; the insert is atomic so concurrent deliveries
	// of the same key cannot both claim first sight. ForgetWebhook releases
	// a claimed key after a failed delivery so the sender's retry can
	// process instead of landing as a duplicate.
	SeenWebhook(ctx context.Context, key string) (bool, error)
	ForgetWebhook(ctx context.Context, key string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
