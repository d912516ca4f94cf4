// Package cost tracks per-provider call spend across waterfall runs and
// refresh sweeps.
package cost

import "sync"

// Ledger accumulates call counts and spend per provider. Safe for use from
// concurrent sweep workers.
type Ledger struct {
	mu    sync.Mutex
	calls map[string]int
	spend map[string]float64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		calls: make(map[string]int),
		spend: make(map[string]float64),
	}
}

// Record adds one call and its cost for a provider.
func (l *Ledger) Record(provider string, costUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[provider]++
	l.spend[provider] += costUSD
}

// TotalUSD returns the total spend across all providers.
func (l *Ledger) TotalUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, v := range l.spend {
		total += v
	}
	return total
}

// Calls returns the call count for a provider.
func (l *Ledger) Calls(provider string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[provider]
}

// Summary returns a copy of the per-provider spend map.
func (l *Ledger) Summary() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]float64, len(l.spend))
	for k, v := range l.spend {
		out[k] = v
	}
	return out
}
