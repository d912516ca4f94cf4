// Package refresh sweeps roster members whose verification data has aged out
// of their risk tier's window.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roster-cli/internal/change"
	"github.com/sells-group/roster-cli/internal/churn"
	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/provider"
	"github.com/sells-group/roster-cli/internal/rerun"
	"github.com/sells-group/roster-cli/internal/store"
	"github.com/sells-group/roster-cli/internal/waterfall"
)

// Result summarizes one sweep.
type Result struct {
	Due       int
	Refreshed int
	Changed   int
	Failed    int
}

// Scheduler refreshes due members tier by tier. Each person is processed
// independently so one provider failure cannot sink the whole sweep.
type Scheduler struct {
	cfg     config.RefreshConfig
	store   store.Store
	source  provider.ProfileSource
	runner  *waterfall.Runner
	trigger *rerun.Trigger
}

func NewScheduler(cfg config.RefreshConfig, s store.Store, source provider.ProfileSource, runner *waterfall.Runner, trigger *rerun.Trigger) *Scheduler {
	return &Scheduler{cfg: cfg, store: s, source: source, runner: runner, trigger: trigger}
}

// Sweep refreshes every member of the given tier whose NextRefreshAt has
// passed, oldest due first, up to the per-run cap.
func (s *Scheduler) Sweep(ctx context.Context, tier model.RefreshTier, now time.Time) (Result, error) {
	limit := s.cfg.MaxPerRun
	if limit <= 0 {
		limit = 200
	}
	due, err := s.store.ListDue(ctx, tier, now, limit)
	if err != nil {
		return Result{}, eris.Wrapf(err, "refresh: list due for tier %s", tier)
	}

	res := Result{Due: len(due)}
	if len(due) == 0 {
		return res, nil
	}

	workers := s.cfg.MaxWorkers
	if workers < 1 {
		workers = 8
	}

	var refreshed, changed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range due {
		p := due[i]
		g.Go(func() error {
			hadChanges, err := s.refreshOne(gctx, &p, now)
			if err != nil {
				failed.Add(1)
				zap.L().Warn("refresh failed",
					zap.String("person_id", p.ID),
					zap.String("tier", string(tier)),
					zap.Error(err))
				return nil // don't fail the group
			}
			refreshed.Add(1)
			if hadChanges {
				changed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, eris.Wrap(err, "refresh: sweep")
	}

	res.Refreshed = int(refreshed.Load())
	res.Changed = int(changed.Load())
	res.Failed = int(failed.Load())
	zap.L().Info("sweep complete",
		zap.String("tier", string(tier)),
		zap.Int("due", res.Due),
		zap.Int("refreshed", res.Refreshed),
		zap.Int("changed", res.Changed),
		zap.Int("failed", res.Failed))
	return res, nil
}

// SweepAll runs the tiers in risk order.
func (s *Scheduler) SweepAll(ctx context.Context, now time.Time) (Result, error) {
	var total Result
	for _, tier := range []model.RefreshTier{model.TierRed, model.TierOrange, model.TierGreen} {
		r, err := s.Sweep(ctx, tier, now)
		if err != nil {
			return total, err
		}
		total.Due += r.Due
		total.Refreshed += r.Refreshed
		total.Changed += r.Changed
		total.Failed += r.Failed
	}
	return total, nil
}

// refreshOne fetches a person's current profile, diffs it against the stored
// snapshot, runs change side effects, re-resolves contact data that moved,
// and schedules the next refresh. Reports whether any change was detected.
func (s *Scheduler) refreshOne(ctx context.Context, p *model.Person, now time.Time) (bool, error) {
	pc := provider.PersonContext{
		ProfileID: p.ProfileID,
		Name:      p.Name,
		Title:     p.Title,
	}
	curr, err := s.source.FetchProfile(ctx, pc)
	if err != nil {
		return false, eris.Wrapf(err, "refresh: fetch profile %s", p.ProfileID)
	}

	var prev model.Snapshot
	if stored, err := s.store.GetSnapshot(ctx, p.ID); err == nil {
		prev = *stored
	} else if !eris.Is(err, store.ErrNotFound) {
		return false, eris.Wrapf(err, "refresh: load snapshot %s", p.ID)
	}

	events := change.Diff(p.ID, prev, *curr, model.SourceScheduledRefresh, now)

	companyName := ""
	if company, err := s.store.GetCompany(ctx, p.CompanyID); err == nil {
		companyName = company.Name
	}
	if _, err := s.trigger.Process(ctx, p, companyName, events); err != nil {
		return false, err
	}
	if err := s.store.SaveSnapshot(ctx, p.ID, *curr); err != nil {
		return false, eris.Wrapf(err, "refresh: save snapshot %s", p.ID)
	}

	if curr.Title != "" {
		p.Title = curr.Title
	}

	// A moved email invalidates the held contact; re-run the cascade to
	// re-establish it rather than trusting the raw profile value.
	if emailMoved(events) && s.runner != nil {
		result := s.runner.Resolve(ctx, model.FieldEmail, curr.Email, pc)
		p.Email = result.ContactField()
	}

	// Tenure accrues between sweeps. Roll the elapsed time into the current
	// stint and reassess risk so the tier tracks a lengthening tenure.
	if len(p.History) > 0 {
		if !p.LastVerifiedAt.IsZero() {
			churn.AdvanceCurrent(p.History, now.Sub(p.LastVerifiedAt))
		}
		p.ChurnRisk, p.Tier = churn.Assess(p.History, churn.CurrentTenure(p.History))
	} else {
		p.Tier = churn.TierFor(p.ChurnRisk)
	}
	p.ScheduleNext(now)

	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return false, eris.Wrapf(err, "refresh: update person %s", p.ID)
	}
	return len(events) > 0, nil
}

func emailMoved(events []model.ChangeEvent) bool {
	for _, ev := range events {
		if ev.Field == change.FieldEmail {
			return true
		}
	}
	return false
}
