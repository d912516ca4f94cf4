// Package webhook ingests real-time profile change deliveries.
package webhook

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/change"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/rerun"
	"github.com/sells-group/roster-cli/internal/store"
)

// ErrMalformed rejects deliveries missing required envelope fields or
// carrying an event type or value that cannot be interpreted.
var ErrMalformed = eris.New("webhook: malformed delivery")

// Event types accepted on the wire.
const (
	EventJobChange        = "job_change"
	EventTitleChange      = "title_change"
	EventStatusChange     = "status_change"
	EventEmailChange      = "email_change"
	EventConnectionChange = "connection_change"
)

// PersonRef identifies the person a delivery concerns.
type PersonRef struct {
	ProfileID string `json:"profileId"`
	Name      string `json:"name,omitempty"`
}

// ProfileEvent is the delivery envelope from the profile change provider:
// one changed field per delivery, identified by event type, with the old and
// new values as strings.
type ProfileEvent struct {
	IdempotencyKey string    `json:"idempotencyKey"`
	EventType      string    `json:"eventType"`
	Person         PersonRef `json:"person"`
	OldValue       string    `json:"oldValue"`
	NewValue       string    `json:"newValue"`
}

// apply projects the delivery onto a copy of the previous snapshot so the
// webhook path and the scheduled refresh share the same differ.
func (e ProfileEvent) apply(prev model.Snapshot) (model.Snapshot, error) {
	curr := prev
	switch e.EventType {
	case EventJobChange:
		curr.Employer = e.NewValue
	case EventTitleChange:
		curr.Title = e.NewValue
	case EventStatusChange:
		active, err := strconv.ParseBool(e.NewValue)
		if err != nil {
			return curr, eris.Wrapf(ErrMalformed, "status value %q", e.NewValue)
		}
		curr.Active = active
	case EventEmailChange:
		curr.Email = e.NewValue
	case EventConnectionChange:
		n, err := strconv.Atoi(e.NewValue)
		if err != nil {
			return curr, eris.Wrapf(ErrMalformed, "connection count %q", e.NewValue)
		}
		curr.Connections = n
	default:
		return curr, eris.Wrapf(ErrMalformed, "event type %q", e.EventType)
	}
	return curr, nil
}

// Outcome of one delivery.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Result reports what a delivery did.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Events  int     `json:"events"`
}

// Ingestor applies webhook deliveries to the change pipeline. Webhook and
// scheduled refresh share the same detector, so a change produces the same
// events regardless of which path saw it first.
type Ingestor struct {
	store   store.Store
	trigger *rerun.Trigger
}

func NewIngestor(s store.Store, trigger *rerun.Trigger) *Ingestor {
	return &Ingestor{store: s, trigger: trigger}
}

// Ingest processes one delivery. Deliveries replaying an already-seen
// idempotency key are acknowledged without effect; the key is claimed
// atomically so concurrent duplicates cannot both process. If the pipeline
// fails after the claim, the key is released again so the sender's
// at-least-once retry is processed rather than swallowed as a duplicate.
func (in *Ingestor) Ingest(ctx context.Context, ev ProfileEvent) (Result, error) {
	if ev.IdempotencyKey == "" || ev.Person.ProfileID == "" {
		return Result{}, ErrMalformed
	}

	seen, err := in.store.SeenWebhook(ctx, ev.IdempotencyKey)
	if err != nil {
		return Result{}, eris.Wrap(err, "webhook: claim key")
	}
	if seen {
		zap.L().Debug("duplicate delivery", zap.String("key", ev.IdempotencyKey))
		return Result{Outcome: OutcomeDuplicate}, nil
	}

	res, err := in.process(ctx, ev)
	if err != nil {
		in.release(ctx, ev.IdempotencyKey)
		return Result{}, err
	}
	return res, nil
}

func (in *Ingestor) process(ctx context.Context, ev ProfileEvent) (Result, error) {
	person, err := in.store.GetPersonByProfileID(ctx, ev.Person.ProfileID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			// Not someone we track. The key stays claimed so replays of
			// the same delivery stay no-ops.
			zap.L().Info("delivery for untracked profile", zap.String("profile_id", ev.Person.ProfileID))
			return Result{Outcome: OutcomeIgnored}, nil
		}
		return Result{}, eris.Wrapf(err, "webhook: lookup profile %s", ev.Person.ProfileID)
	}

	var prev model.Snapshot
	if stored, err := in.store.GetSnapshot(ctx, person.ID); err == nil {
		prev = *stored
	} else if !eris.Is(err, store.ErrNotFound) {
		return Result{}, eris.Wrapf(err, "webhook: load snapshot %s", person.ID)
	}

	curr, err := ev.apply(prev)
	if err != nil {
		return Result{}, err
	}
	events := change.Diff(person.ID, prev, curr, model.SourceWebhook, time.Now().UTC())

	companyName := ""
	if company, err := in.store.GetCompany(ctx, person.CompanyID); err == nil {
		companyName = company.Name
	}
	if _, err := in.trigger.Process(ctx, person, companyName, events); err != nil {
		return Result{}, err
	}
	if err := in.store.SaveSnapshot(ctx, person.ID, curr); err != nil {
		return Result{}, eris.Wrapf(err, "webhook: save snapshot %s", person.ID)
	}

	zap.L().Info("delivery processed",
		zap.String("profile_id", ev.Person.ProfileID),
		zap.String("person_id", person.ID),
		zap.String("event_type", ev.EventType),
		zap.Int("events", len(events)))
	return Result{Outcome: OutcomeProcessed, Events: len(events)}, nil
}

// release gives the idempotency key back after a failed pipeline run.
func (in *Ingestor) release(ctx context.Context, key string) {
	if err := in.store.ForgetWebhook(ctx, key); err != nil {
		zap.L().Warn("webhook: release key failed", zap.String("key", key), zap.Error(err))
	}
}
