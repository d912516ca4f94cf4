// Package roles assigns buyer-group roles to candidates and enforces roster
// invariants (decision-maker presence, group size cap).
package roles

import (
	"strings"

	"github.com/sells-group/roster-cli/internal/model"
)

// DealContext carries the deal signals that influence classification.
type DealContext struct {
	SizeUSD  float64
	Category string
}

// LargeDealUSD is the size at which financial sign-off stops being a blocker
// function and becomes the decision function.
const LargeDealUSD = 100_000

// rule is one entry in the ordered classification table. First match wins;
// ties are broken by table position, not by confidence.
type rule struct {
	role     model.BuyerRole
	priority int // lower = stronger claim, used for promotion order
	keywords []string
}

// ruleTable is evaluated top to bottom against the lowercased title and
// department. Executive signals outrank financial/procurement gatekeeping,
// which outranks operational ownership; anything else with a match is a
// stakeholder.
var ruleTable = []rule{
	{role: model.RoleDecision, priority: 0, keywords: []string{
		"chief executive", "ceo", "founder", "co-founder", "owner",
		"president", "managing director", "managing partner",
		"chief revenue", "cro", "executive vice president", "evp",
	}},
	{role: model.RoleBlocker, priority: 1, keywords: []string{
		"procurement", "purchasing", "sourcing", "vendor management",
		"chief financial", "cfo", "finance director", "controller",
		"general counsel", "legal", "compliance",
	}},
	{role: model.RoleChampion, priority: 2, keywords: []string{
		"chief technology", "cto", "chief information", "cio",
		"vp engineering", "vp of engineering", "head of engineering",
		"engineering manager", "it manager", "operations manager",
		"head of operations", "product manager", "technical lead",
	}},
	{role: model.RoleStakeholder, priority: 3, keywords: []string{
		"director", "head of", "vice president", "vp ", "manager",
		"lead", "architect", "analyst", "administrator", "specialist",
		"coordinator", "consultant",
	}},
}

// financialDecisionKeywords promote finance titles to decision on large deals.
var financialDecisionKeywords = []string{"chief financial", "cfo"}

// Classify assigns a buyer-group role from title, department and deal
// context. Returns RoleUnclassified when no rule matches; unclassified
// candidates are excluded from the roster unless promoted by the sizing
// policy. Deterministic: same inputs always yield the same role.
func Classify(title, department string, deal DealContext) model.BuyerRole {
	haystack := strings.ToLower(title + " " + department)
	if strings.TrimSpace(haystack) == "" {
		return model.RoleUnclassified
	}

	// On large deals the budget holder is the decision maker, not a blocker.
	if deal.SizeUSD >= LargeDealUSD {
		for _, kw := range financialDecisionKeywords {
			if strings.Contains(haystack, kw) {
				return model.RoleDecision
			}
		}
	}

	for _, r := range ruleTable {
		for _, kw := range r.keywords {
			if strings.Contains(haystack, kw) {
				return r.role
			}
		}
	}
	return model.RoleUnclassified
}

// rolePriority returns the promotion order for a role: lower is promoted
// first. Unclassified sorts last.
func rolePriority(role model.BuyerRole) int {
	for _, r := range ruleTable {
		if r.role == role {
			return r.priority
		}
	}
	return len(ruleTable)
}
