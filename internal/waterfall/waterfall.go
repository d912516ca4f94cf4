// Package waterfall resolves a single contact field by cascading through
// provider adapters in priority order, cheapest and most authoritative first.
package waterfall

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/cost"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/provider"
)

// FieldResult is the outcome of running the waterfall for one contact field.
type FieldResult struct {
	Field        model.ContactFieldKey `json:"field"`
	Value        string                `json:"value,omitempty"`
	Confidence   int                   `json:"confidence"`
	Provenance   model.Provenance      `json:"provenance"`
	Chain        []model.SourceAttempt `json:"chain"`
	TotalCostUSD float64               `json:"total_cost_usd"`

	confirmed []provider.Outcome // every Confirmed seen during resolution
}

// ContactField converts the result into the persisted field representation.
func (r FieldResult) ContactField() model.ContactField {
	return model.ContactField{
		Value:      r.Value,
		Confidence: r.Confidence,
		Provenance: r.Provenance,
		Chain:      r.Chain,
	}
}

// Runner executes the verification waterfall. Adapter failures are absorbed:
// the worst case is an unverified field, never an error to the caller.
type Runner struct {
	cfg      config.WaterfallConfig
	registry *provider.Registry
	ledger   *cost.Ledger
}

// NewRunner creates a waterfall runner. The ledger may be nil.
func NewRunner(cfg config.WaterfallConfig, registry *provider.Registry, ledger *cost.Ledger) *Runner {
	return &Runner{cfg: cfg, registry: registry, ledger: ledger}
}

// Resolve produces a single verified-or-discovered value for the field.
//
//  1. With a known value, verify against each adapter in order; the first
//     Confirmed wins with provenance verified.
//  2. Without a known value, or when every verify ended NotFound, discover
//     against each adapter in order; the first Confirmed wins with
//     provenance discovered.
//  3. Otherwise the field is unverified with confidence 0.
//
// Unavailable outcomes are skipped, never counted as negative signals. The
// full attempt chain and the total cost of every attempted call, including
// failed ones, are preserved regardless of outcome.
func (r *Runner) Resolve(ctx context.Context, field model.ContactFieldKey, known string, pc provider.PersonContext) FieldResult {
	res := FieldResult{Field: field, Provenance: model.ProvenanceUnverified}
	adapters := r.orderedAdapters(field)

	if known != "" {
		for _, a := range adapters {
			out := r.attempt(ctx, a, &res, "verify", func() provider.Outcome {
				return a.Verify(ctx, field, known, pc)
			})
			if out.Status == model.OutcomeConfirmed {
				r.finish(&res, out, model.ProvenanceVerified)
				return res
			}
		}
	}

	for _, a := range adapters {
		out := r.attempt(ctx, a, &res, "discover", func() provider.Outcome {
			return a.Discover(ctx, field, pc)
		})
		if out.Status == model.OutcomeConfirmed {
			r.finish(&res, out, model.ProvenanceDiscovered)
			return res
		}
	}

	zap.L().Debug("waterfall: field unresolved",
		zap.String("field", string(field)),
		zap.String("profile", pc.ProfileID),
		zap.Int("attempts", len(res.Chain)),
	)
	res.Confidence = 0
	return res
}

// orderedAdapters resolves the configured priority order for a field into
// registered adapters that support it.
func (r *Runner) orderedAdapters(field model.ContactFieldKey) []provider.Adapter {
	var out []provider.Adapter
	for _, name := range r.cfg.Order[string(field)] {
		a := r.registry.Get(name)
		if a == nil {
			zap.L().Warn("waterfall: unknown adapter in config", zap.String("adapter", name))
			continue
		}
		if !a.Supports(field) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// attempt runs one adapter call unless the remaining budget cannot cover it,
// in which case the adapter is skipped as Unavailable. Every attempt lands in
// the chain; every billed call lands in the ledger.
func (r *Runner) attempt(_ context.Context, a provider.Adapter, res *FieldResult, mode string, call func() provider.Outcome) provider.Outcome {
	var out provider.Outcome
	if r.cfg.MaxCostUSD > 0 && res.TotalCostUSD+a.CostPerCall() > r.cfg.MaxCostUSD {
		out = provider.Unavailable(a.Name(), "budget")
	} else {
		out = call()
	}

	res.Chain = append(res.Chain, out.Attempt(mode))
	res.TotalCostUSD += out.CostUSD
	if out.Status == model.OutcomeConfirmed {
		res.confirmed = append(res.confirmed, out)
	}
	if r.ledger != nil && out.CostUSD > 0 {
		r.ledger.Record(out.Provider, out.CostUSD)
	}
	return out
}

// finish installs the winning outcome. The winner's reported confidence is
// used as-is, then boosted by a bounded constant for every other adapter that
// independently confirmed the same value. Never summed, capped at 100.
func (r *Runner) finish(res *FieldResult, winner provider.Outcome, prov model.Provenance) {
	res.Value = winner.Value
	res.Provenance = prov

	corroborations := 0
	for _, c := range res.confirmed {
		if c.Provider != winner.Provider && c.Value == winner.Value {
			corroborations++
		}
	}
	res.Confidence = BoostConfidence(winner.Confidence, corroborations, r.cfg.CorroborationBoost)
}

// BoostConfidence applies the corroboration boost: base plus boost per
// corroborating source, monotonically non-decreasing and capped at 100.
func BoostConfidence(base, corroborations, boost int) int {
	if base < 0 {
		base = 0
	}
	if boost <= 0 {
		boost = 10
	}
	c := base + corroborations*boost
	if c > 100 {
		return 100
	}
	return c
}
