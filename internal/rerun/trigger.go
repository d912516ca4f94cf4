package rerun

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/notify"
	"github.com/sells-group/roster-cli/internal/store"
)

// Trigger reacts to detected changes: it records them, feeds the notification
// stream, and flags the company for regeneration when a change is critical.
// Detection only ever raises the flag; clearing it belongs to the worker.
type Trigger struct {
	store    store.Store
	feed     *notify.Feed
	enqueuer Enqueuer
}

func NewTrigger(s store.Store, feed *notify.Feed, enq Enqueuer) *Trigger {
	return &Trigger{store: s, feed: feed, enqueuer: enq}
}

// Process persists a person's change events and runs the downstream effects.
// Returns true when this batch flipped the company's regeneration flag.
// A critical event while the flag is already up is recorded and notified but
// does not enqueue a second regeneration. Only buyer-group members can flag
// their company: changes to tracked non-members are recorded and notified
// without triggering regeneration.
func (t *Trigger) Process(ctx context.Context, person *model.Person, companyName string, events []model.ChangeEvent) (bool, error) {
	if len(events) == 0 {
		return false, nil
	}

	if err := t.store.AppendChangeEvents(ctx, events); err != nil {
		return false, eris.Wrapf(err, "rerun: record changes for %s", person.ID)
	}
	if err := t.feed.Publish(ctx, person, companyName, events); err != nil {
		return false, err
	}

	critical := firstCritical(events)
	if critical == nil {
		return false, nil
	}
	if !person.Member {
		zap.L().Debug("critical change on non-member, not flagging",
			zap.String("person_id", person.ID),
			zap.String("field", critical.Field))
		return false, nil
	}

	reason := "critical change: " + critical.Field
	flipped, err := t.store.MarkRerunNeeded(ctx, person.CompanyID, reason, time.Now().UTC())
	if err != nil {
		return false, eris.Wrapf(err, "rerun: flag company %s", person.CompanyID)
	}
	if !flipped {
		zap.L().Debug("regeneration already pending",
			zap.String("company_id", person.CompanyID),
			zap.String("field", critical.Field))
		return false, nil
	}

	zap.L().Info("regeneration flagged",
		zap.String("company_id", person.CompanyID),
		zap.String("person_id", person.ID),
		zap.String("reason", reason))

	if t.enqueuer != nil {
		if err := t.enqueuer.EnqueueRerun(ctx, RerunPayload{CompanyID: person.CompanyID, Reason: reason}); err != nil {
			// The flag is durable, so a lost enqueue is recovered by the
			// next worker sweep rather than unwound here.
			zap.L().Warn("enqueue failed, flag remains set",
				zap.String("company_id", person.CompanyID), zap.Error(err))
		}
	}
	return true, nil
}

func firstCritical(events []model.ChangeEvent) *model.ChangeEvent {
	for i := range events {
		if events[i].Critical {
			return &events[i]
		}
	}
	return nil
}
