// Package provider defines the adapter contract and implementations for
// external contact verification and discovery sources.
package provider

import (
	"context"
	"sync"

	"github.com/sells-group/roster-cli/internal/model"
)

// PersonContext holds the identifiers an adapter may use to look up a person.
type PersonContext struct {
	ProfileID     string
	Name          string
	Title         string
	CompanyName   string
	CompanyDomain string
}

// Outcome is the typed result of a single adapter call. Exactly one of the
// three statuses applies: Confirmed carries a value and confidence, NotFound
// is a negative signal that advances the waterfall, Unavailable (quota, auth,
// timeout) is not a negative signal and must never count as one.
type Outcome struct {
	Provider   string
	Status     model.OutcomeStatus
	Value      string
	Confidence int // 0-100, only meaningful when Confirmed
	CostUSD    float64
	Reason     string // only set when Unavailable
}

// Confirmed builds a positive outcome.
func Confirmed(provider, value string, confidence int, costUSD float64) Outcome {
	return Outcome{Provider: provider, Status: model.OutcomeConfirmed, Value: value, Confidence: confidence, CostUSD: costUSD}
}

// NotFound builds a negative outcome. The call still bears cost.
func NotFound(provider string, costUSD float64) Outcome {
	return Outcome{Provider: provider, Status: model.OutcomeNotFound, CostUSD: costUSD}
}

// Unavailable builds an outcome for a source that could not answer.
func Unavailable(provider, reason string) Outcome {
	return Outcome{Provider: provider, Status: model.OutcomeUnavailable, Reason: reason}
}

// Attempt converts the outcome into an audit chain entry.
func (o Outcome) Attempt(mode string) model.SourceAttempt {
	return model.SourceAttempt{
		Provider: o.Provider,
		Mode:     mode,
		Status:   o.Status,
		Reason:   o.Reason,
		CostUSD:  o.CostUSD,
	}
}

// Adapter is a uniform interface to one external verification source.
// Implementations must be safe to call with an empty known value and must
// never return an error-like outcome for ordinary negative results.
type Adapter interface {
	// Name returns the provider identifier (matches waterfall config order).
	Name() string
	// Supports reports whether the adapter can answer for a field.
	Supports(field model.ContactFieldKey) bool
	// CostPerCall estimates the cost of a single lookup, for budget gating.
	CostPerCall() float64
	// Verify checks a known value against the source.
	Verify(ctx context.Context, field model.ContactFieldKey, known string, pc PersonContext) Outcome
	// Discover attempts to find a fresh value from the source.
	Discover(ctx context.Context, field model.ContactFieldKey, pc PersonContext) Outcome
}

// ProfileSource fetches a full profile snapshot for refresh sweeps. Adapters
// that can see employment state implement this in addition to Adapter.
type ProfileSource interface {
	FetchProfile(ctx context.Context, pc PersonContext) (*model.Snapshot, error)
}

// Registry manages available adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name, or nil if not found.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns all registered adapter names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
