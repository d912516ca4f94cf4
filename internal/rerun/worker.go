package rerun

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/churn"
	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/roles"
	"github.com/sells-group/roster-cli/internal/store"
)

// Worker consumes regeneration tasks. It is the only component allowed to
// clear a company's regeneration flag.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	store      store.Store
	deal       roles.DealContext
	maxMembers int
}

func NewWorker(cfg config.QueueConfig, s store.Store, deal roles.DealContext, maxMembers int) (*Worker, error) {
	opt, err := redisClientOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.Name
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}
	if maxMembers < 1 {
		maxMembers = roles.DefaultMaxMembers
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})

	w := &Worker{
		server:     server,
		mux:        asynq.NewServeMux(),
		store:      s,
		deal:       deal,
		maxMembers: maxMembers,
	}
	w.mux.HandleFunc(TaskRosterRerun, w.handleRosterRerun)
	return w, nil
}

func (w *Worker) Run() error {
	return eris.Wrap(w.server.Run(w.mux), "rerun: worker run")
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleRosterRerun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRosterRerunPayload(task)
	if err != nil {
		return err
	}
	return w.Regenerate(ctx, payload.CompanyID)
}

// Regenerate rebuilds one company's buyer group from its current members and
// clears the regeneration flag. A company whose flag is already down is a
// no-op, so a stale or duplicate task does no harm.
func (w *Worker) Regenerate(ctx context.Context, companyID string) error {
	company, err := w.store.GetCompany(ctx, companyID)
	if err != nil {
		return eris.Wrapf(err, "rerun: load company %s", companyID)
	}
	if !company.RerunNeeded {
		zap.L().Debug("regeneration flag already clear", zap.String("company_id", companyID))
		return nil
	}

	members, err := w.store.ListMembers(ctx, companyID)
	if err != nil {
		return eris.Wrapf(err, "rerun: load members %s", companyID)
	}

	candidates := make([]*model.Person, 0, len(members))
	for i := range members {
		p := &members[i]
		if w.departed(ctx, p, company.Name) {
			// Departed people leave the group but keep their record and
			// change history.
			p.Member = false
			p.Role = model.RoleUnclassified
		} else {
			p.Role = roles.Classify(p.Title, p.Department, w.deal)
			if len(p.History) > 0 {
				p.ChurnRisk, p.Tier = churn.Assess(p.History, churn.CurrentTenure(p.History))
			}
			candidates = append(candidates, p)
		}
	}

	roles.Finalize(candidates, w.maxMembers)

	for i := range members {
		if err := w.store.UpdatePerson(ctx, &members[i]); err != nil {
			return eris.Wrapf(err, "rerun: update person %s", members[i].ID)
		}
	}

	if err := w.store.ClearRerun(ctx, companyID); err != nil {
		return eris.Wrapf(err, "rerun: clear flag %s", companyID)
	}

	zap.L().Info("buyer group regenerated",
		zap.String("company_id", companyID),
		zap.String("reason", company.RerunReason),
		zap.Int("candidates", len(candidates)))
	return nil
}

// departed reports whether a person's latest snapshot shows they left the
// company or went inactive.
func (w *Worker) departed(ctx context.Context, p *model.Person, companyName string) bool {
	snap, err := w.store.GetSnapshot(ctx, p.ID)
	if err != nil {
		return false
	}
	if !snap.Active {
		return true
	}
	return snap.Employer != "" && companyName != "" && snap.Employer != companyName
}
