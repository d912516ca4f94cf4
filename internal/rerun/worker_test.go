package rerun

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/notify"
	"github.com/sells-group/roster-cli/internal/roles"
	"github.com/sells-group/roster-cli/internal/store"
)

func newTestWorker(s store.Store) *Worker {
	return &Worker{store: s, maxMembers: roles.DefaultMaxMembers}
}

func addMember(t *testing.T, s store.Store, companyID, profileID, name, title string, role model.BuyerRole, rank int) *model.Person {
	t.Helper()
	p := &model.Person{
		ProfileID: profileID,
		Name:      name,
		CompanyID: companyID,
		Title:     title,
		Role:      role,
		Rank:      rank,
		Member:    true,
		Tier:      model.TierGreen,
	}
	require.NoError(t, s.CreatePerson(context.Background(), p))
	return p
}

func TestRegenerate_FlagDownIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Company{Name: "Acme", Domain: "acme.com"}
	require.NoError(t, s.CreateCompany(ctx, c))

	w := newTestWorker(s)
	require.NoError(t, w.Regenerate(ctx, c.ID))
}

func TestRegenerate_DepartedMemberRemoved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Company{Name: "Acme", Domain: "acme.com"}
	require.NoError(t, s.CreateCompany(ctx, c))

	leaver := addMember(t, s, c.ID, "prof-leaver", "Dana Reyes", "CTO", model.RoleChampion, 2)
	stayer := addMember(t, s, c.ID, "prof-stayer", "Sam Ortiz", "CEO", model.RoleDecision, 1)

	// Latest snapshot shows Dana now works elsewhere.
	require.NoError(t, s.SaveSnapshot(ctx, leaver.ID, model.Snapshot{
		Employer: "Zenith", Title: "CTO", Active: true,
	}))
	require.NoError(t, s.SaveSnapshot(ctx, stayer.ID, model.Snapshot{
		Employer: "Acme", Title: "CEO", Active: true,
	}))

	_, err := s.MarkRerunNeeded(ctx, c.ID, "critical change: employer", time.Now().UTC())
	require.NoError(t, err)

	w := newTestWorker(s)
	require.NoError(t, w.Regenerate(ctx, c.ID))

	gone, err := s.GetPerson(ctx, leaver.ID)
	require.NoError(t, err)
	assert.False(t, gone.Member)
	assert.Equal(t, model.RoleUnclassified, gone.Role)

	kept, err := s.GetPerson(ctx, stayer.ID)
	require.NoError(t, err)
	assert.True(t, kept.Member)
	assert.Equal(t, model.RoleDecision, kept.Role)

	// The departed person's record and history survive.
	events, err := s.ListChangeEvents(ctx, leaver.ID, 10)
	require.NoError(t, err)
	assert.NotNil(t, events)

	company, err := s.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, company.RerunNeeded)
}

func TestRegenerate_ReclassifiesFromCurrentTitles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Company{Name: "Acme", Domain: "acme.com"}
	require.NoError(t, s.CreateCompany(ctx, c))

	// Stored role is stale; the title now carries a decision signal.
	p := addMember(t, s, c.ID, "prof-1", "Dana Reyes", "Chief Executive Officer", model.RoleChampion, 1)
	require.NoError(t, s.SaveSnapshot(ctx, p.ID, model.Snapshot{
		Employer: "Acme", Title: "Chief Executive Officer", Active: true,
	}))

	_, err := s.MarkRerunNeeded(ctx, c.ID, "critical change: title", time.Now().UTC())
	require.NoError(t, err)

	w := newTestWorker(s)
	require.NoError(t, w.Regenerate(ctx, c.ID))

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDecision, got.Role)
	assert.True(t, got.Member)
}

func TestRegenerate_ReassessesChurnFromHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Company{Name: "Acme", Domain: "acme.com"}
	require.NoError(t, s.CreateCompany(ctx, c))

	// Two-year average tenure, four years into the current role.
	p := addMember(t, s, c.ID, "prof-1", "Dana Reyes", "CEO", model.RoleDecision, 1)
	p.History = []model.RoleInterval{
		{Company: "Prior Co", Title: "VP Eng", Duration: 2 * 365 * 24 * time.Hour},
		{Company: "Acme", Title: "CEO", Duration: 4 * 365 * 24 * time.Hour, Current: true},
	}
	require.NoError(t, s.UpdatePerson(ctx, p))
	require.NoError(t, s.SaveSnapshot(ctx, p.ID, model.Snapshot{
		Employer: "Acme", Title: "CEO", Active: true,
	}))

	_, err := s.MarkRerunNeeded(ctx, c.ID, "critical change: title", time.Now().UTC())
	require.NoError(t, err)

	w := newTestWorker(s)
	require.NoError(t, w.Regenerate(ctx, c.ID))

	got, err := s.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.ChurnRisk)
	assert.Equal(t, model.TierRed, got.Tier)
}

// Full pipeline: a webhook-style critical change flips the flag exactly once,
// produces a high-priority notification, and the regeneration pass drops the
// person who moved from Acme to Zenith.
func TestCriticalChangeToRegeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &model.Company{Name: "Acme", Domain: "acme.com"}
	require.NoError(t, s.CreateCompany(ctx, c))

	mover := addMember(t, s, c.ID, "prof-mover", "Dana Reyes", "CTO", model.RoleChampion, 2)
	ceo := addMember(t, s, c.ID, "prof-ceo", "Sam Ortiz", "CEO", model.RoleDecision, 1)
	require.NoError(t, s.SaveSnapshot(ctx, mover.ID, model.Snapshot{Employer: "Zenith", Title: "CTO", Active: true}))
	require.NoError(t, s.SaveSnapshot(ctx, ceo.ID, model.Snapshot{Employer: "Acme", Title: "CEO", Active: true}))

	enq := &fakeEnqueuer{}
	trigger := NewTrigger(s, notify.NewFeed(s), enq)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ev := model.ChangeEvent{
		PersonID: mover.ID, Field: "employer",
		OldValue: "Acme", NewValue: "Zenith",
		Critical: true, Source: model.SourceWebhook, DetectedAt: at,
	}
	flipped, err := trigger.Process(ctx, mover, c.Name, []model.ChangeEvent{ev})
	require.NoError(t, err)
	assert.True(t, flipped)
	require.Len(t, enq.payloads, 1)

	pending, err := s.ListUnacknowledged(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.PriorityHigh, pending[0].Priority)

	w := newTestWorker(s)
	require.NoError(t, w.Regenerate(ctx, enq.payloads[0].CompanyID))

	gone, err := s.GetPerson(ctx, mover.ID)
	require.NoError(t, err)
	assert.False(t, gone.Member)

	company, err := s.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, company.RerunNeeded)

	// With the flag cleared, a new critical change can trigger again.
	flipped, err = s.MarkRerunNeeded(ctx, c.ID, "critical change: active", at.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, flipped)
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewRosterRerunTask(RerunPayload{CompanyID: "c1", Reason: "critical change: employer"})
	require.NoError(t, err)
	assert.Equal(t, TaskRosterRerun, task.Type())

	payload, err := ParseRosterRerunPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "c1", payload.CompanyID)
	assert.Equal(t, "critical change: employer", payload.Reason)
}
