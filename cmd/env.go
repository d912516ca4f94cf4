package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/cost"
	"github.com/sells-group/roster-cli/internal/notify"
	"github.com/sells-group/roster-cli/internal/provider"
	"github.com/sells-group/roster-cli/internal/refresh"
	"github.com/sells-group/roster-cli/internal/rerun"
	"github.com/sells-group/roster-cli/internal/roles"
	"github.com/sells-group/roster-cli/internal/store"
	"github.com/sells-group/roster-cli/internal/waterfall"
	"github.com/sells-group/roster-cli/internal/webhook"
)

// rosterEnv holds the initialized store, providers and services shared by the
// sweep/verify/serve commands.
type rosterEnv struct {
	Store     store.Store
	Registry  *provider.Registry
	Ledger    *cost.Ledger
	Runner    *waterfall.Runner
	Feed      *notify.Feed
	Queue     *rerun.Client // nil when redis is not configured
	Trigger   *rerun.Trigger
	Scheduler *refresh.Scheduler
	Ingestor  *webhook.Ingestor
}

// Close releases resources held by the environment.
func (e *rosterEnv) Close() {
	if e.Queue != nil {
		_ = e.Queue.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "roster.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, provider adapters, the verification waterfall
// and the change pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context) (*rosterEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	timeout := cfg.Providers.ProviderTimeout()
	pdl := provider.NewPDL(cfg.Providers.PDL, timeout, cfg.Providers.DefaultRegion)
	emailCheck := provider.NewEmailCheck(cfg.Providers.EmailCheck, timeout)

	registry := provider.NewRegistry()
	registry.Register(pdl)
	registry.Register(emailCheck)

	ledger := cost.NewLedger()
	runner := waterfall.NewRunner(cfg.Waterfall, registry, ledger)
	feed := notify.NewFeed(st)

	// The queue is optional: without redis the flag still raises and the
	// worker's next poll picks it up.
	var queue *rerun.Client
	if cfg.Queue.RedisURL != "" {
		queue, err = rerun.NewClient(cfg.Queue)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	} else {
		zap.L().Debug("ROSTER_QUEUE_REDIS_URL not set, rerun enqueue disabled")
	}

	var enqueuer rerun.Enqueuer
	if queue != nil {
		enqueuer = queue
	}
	trigger := rerun.NewTrigger(st, feed, enqueuer)
	scheduler := refresh.NewScheduler(cfg.Refresh, st, pdl, runner, trigger)
	ingestor := webhook.NewIngestor(st, trigger)

	return &rosterEnv{
		Store:     st,
		Registry:  registry,
		Ledger:    ledger,
		Runner:    runner,
		Feed:      feed,
		Queue:     queue,
		Trigger:   trigger,
		Scheduler: scheduler,
		Ingestor:  ingestor,
	}, nil
}

func dealContext() roles.DealContext {
	return roles.DealContext{
		SizeUSD:  cfg.Deal.SizeUSD,
		Category: cfg.Deal.Category,
	}
}
