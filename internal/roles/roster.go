package roles

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
)

// DefaultMaxMembers caps buyer-group size when no override is configured.
const DefaultMaxMembers = 12

// Finalize enforces the roster invariants on a classified candidate set:
//
//   - unclassified candidates are excluded from membership;
//   - every non-empty group contains at least one decision member — if none
//     exists, the highest-priority candidate (by rule order, then by
//     organizational rank) is promoted to decision;
//   - groups larger than maxMembers are trimmed keeping decision members
//     first, then by rank. Trimmed members lose their role, not their record.
//
// Candidates are mutated in place.
func Finalize(candidates []*model.Person, maxMembers int) {
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}

	var members []*model.Person
	for _, p := range candidates {
		if p.Role == model.RoleUnclassified {
			p.Member = false
			continue
		}
		p.Member = true
		members = append(members, p)
	}
	if len(members) == 0 {
		return
	}

	ensureDecision(members)

	if len(members) > maxMembers {
		trim(members, maxMembers)
	}
}

// ensureDecision promotes one member to decision when the group has none.
func ensureDecision(members []*model.Person) {
	for _, p := range members {
		if p.Role == model.RoleDecision {
			return
		}
	}

	best := members[0]
	for _, p := range members[1:] {
		if promotionLess(p, best) {
			best = p
		}
	}

	zap.L().Info("roster: promoting member to decision",
		zap.String("person", best.Name),
		zap.String("from_role", string(best.Role)),
	)
	best.Role = model.RoleDecision
}

// promotionLess orders candidates for decision promotion: rule priority
// first, then organizational rank (lower = more senior), then name for a
// stable result.
func promotionLess(a, b *model.Person) bool {
	pa, pb := rolePriority(a.Role), rolePriority(b.Role)
	if pa != pb {
		return pa < pb
	}
	if a.Rank != b.Rank {
		return rankOrder(a.Rank) < rankOrder(b.Rank)
	}
	return a.Name < b.Name
}

// rankOrder treats a missing rank (0) as least senior.
func rankOrder(rank int) int {
	if rank <= 0 {
		return int(^uint(0) >> 1)
	}
	return rank
}

// trim clears membership beyond the cap, keeping decision members first and
// then the most senior by rank. Records are kept; only the role is cleared.
func trim(members []*model.Person, maxMembers int) {
	sorted := make([]*model.Person, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Role == model.RoleDecision, sorted[j].Role == model.RoleDecision
		if di != dj {
			return di
		}
		return rankOrder(sorted[i].Rank) < rankOrder(sorted[j].Rank)
	})

	for _, p := range sorted[maxMembers:] {
		zap.L().Debug("roster: trimming member over cap",
			zap.String("person", p.Name),
			zap.String("role", string(p.Role)),
		)
		p.Role = model.RoleUnclassified
		p.Member = false
	}
}
