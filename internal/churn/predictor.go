// Package churn derives departure risk from a person's career history and
// maps it onto a refresh tier.
package churn

import (
	"time"

	"github.com/sells-group/roster-cli/internal/model"
)

// Tier thresholds are fixed constants, not runtime-tunable: the red/orange
// boundary sits at 70, the orange/green boundary at 40.
const (
	RedThreshold    = 70
	OrangeThreshold = 40

	// InsufficientHistoryRisk is the floor for people with no completed
	// prior roles. Medium-low rather than zero: no history is not evidence
	// of stability.
	InsufficientHistoryRisk = 35
)

// RiskScore computes a 0-100 departure-risk score from past role intervals
// and the current role duration. The score scales with how far the current
// tenure exceeds the historical average: a person at exactly their average
// tenure scores 50, twice the average saturates toward 100, and a fresh hire
// scores near 0.
func RiskScore(history []model.RoleInterval, currentTenure time.Duration) int {
	avg := averageCompletedTenure(history)
	if avg <= 0 {
		return InsufficientHistoryRisk
	}

	ratio := float64(currentTenure) / float64(avg)
	var risk float64
	if ratio <= 1 {
		risk = ratio * 50
	} else {
		risk = 50 + (ratio-1)*50
	}

	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return int(risk)
}

// TierFor maps a risk score to a refresh tier: high risk means daily
// re-checks (red), medium weekly (orange), low monthly (green).
func TierFor(risk int) model.RefreshTier {
	switch {
	case risk >= RedThreshold:
		return model.TierRed
	case risk >= OrangeThreshold:
		return model.TierOrange
	default:
		return model.TierGreen
	}
}

// Assess computes risk and tier in one step for a person's history.
func Assess(history []model.RoleInterval, currentTenure time.Duration) (int, model.RefreshTier) {
	risk := RiskScore(history, currentTenure)
	return risk, TierFor(risk)
}

// AdvanceCurrent extends the current stint's recorded duration by elapsed
// time. Histories store durations rather than start dates, so each sweep
// rolls the time since the last verification into the current interval
// before reassessing.
func AdvanceCurrent(history []model.RoleInterval, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	for i := range history {
		if history[i].Current {
			history[i].Duration += elapsed
			return
		}
	}
}

// CurrentTenure returns the duration of the current stint, or 0 when the
// history records none.
func CurrentTenure(history []model.RoleInterval) time.Duration {
	for _, ri := range history {
		if ri.Current {
			return ri.Duration
		}
	}
	return 0
}

// averageCompletedTenure averages the duration of completed (non-current)
// stints. Returns 0 when there are none.
func averageCompletedTenure(history []model.RoleInterval) time.Duration {
	var total time.Duration
	var n int
	for _, ri := range history {
		if ri.Current || ri.Duration <= 0 {
			continue
		}
		total += ri.Duration
		n++
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}
