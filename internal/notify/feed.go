// Package notify turns detected changes into a reviewable notification feed.
package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/store"
)

// normalPriorityEventCount is the number of simultaneous non-critical changes
// that bumps a notification from low to normal priority.
const normalPriorityEventCount = 3

// Feed accumulates change notifications for human review. Notifications stay
// in the feed until acknowledged.
type Feed struct {
	store store.Store
}

func NewFeed(s store.Store) *Feed {
	return &Feed{store: s}
}

// Publish records one notification summarizing a person's new change events
// and marks those events as consumed. No events means no notification.
func (f *Feed) Publish(ctx context.Context, person *model.Person, companyName string, events []model.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	n := &model.Notification{
		PersonID:    person.ID,
		PersonName:  person.Name,
		CompanyName: companyName,
		Changes:     events,
		Priority:    PriorityFor(events),
		CreatedAt:   time.Now().UTC(),
	}
	if err := f.store.AppendNotification(ctx, n); err != nil {
		return eris.Wrapf(err, "notify: publish for %s", person.ID)
	}
	if err := f.store.MarkEventsNotified(ctx, person.ID); err != nil {
		return eris.Wrapf(err, "notify: mark consumed for %s", person.ID)
	}

	zap.L().Info("notification published",
		zap.String("person_id", person.ID),
		zap.String("priority", string(n.Priority)),
		zap.Int("events", len(events)))
	return nil
}

// PriorityFor ranks a batch of events. Any critical event is high priority;
// several simultaneous routine changes are normal; a lone routine change is
// low.
func PriorityFor(events []model.ChangeEvent) model.NotificationPriority {
	for _, ev := range events {
		if ev.Critical {
			return model.PriorityHigh
		}
	}
	if len(events) >= normalPriorityEventCount {
		return model.PriorityNormal
	}
	return model.PriorityLow
}

// Pending returns unacknowledged notifications, oldest first.
func (f *Feed) Pending(ctx context.Context) ([]model.Notification, error) {
	out, err := f.store.ListUnacknowledged(ctx)
	return out, eris.Wrap(err, "notify: list pending")
}

// Acknowledge clears all pending notifications for a person.
func (f *Feed) Acknowledge(ctx context.Context, personID string) error {
	return eris.Wrapf(f.store.AcknowledgeByPerson(ctx, personID), "notify: acknowledge %s", personID)
}
