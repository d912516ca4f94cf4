package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/roster-cli/internal/model"
)

func TestClassify_RuleTable(t *testing.T) {
	tests := []struct {
		title      string
		department string
		want       model.BuyerRole
	}{
		{"Chief Executive Officer", "", model.RoleDecision},
		{"Co-Founder & President", "", model.RoleDecision},
		{"CRO", "Sales", model.RoleDecision},
		{"CFO", "Finance", model.RoleBlocker},
		{"Head of Procurement", "", model.RoleBlocker},
		{"General Counsel", "Legal", model.RoleBlocker},
		{"CTO", "", model.RoleChampion},
		{"VP Engineering", "", model.RoleChampion},
		{"Operations Manager", "", model.RoleChampion},
		{"Senior Data Analyst", "", model.RoleStakeholder},
		{"Solutions Architect", "", model.RoleStakeholder},
		{"Barista", "", model.RoleUnclassified},
		{"", "", model.RoleUnclassified},
	}
	for _, tt := range tests {
		got := Classify(tt.title, tt.department, DealContext{})
		assert.Equal(t, tt.want, got, "title %q", tt.title)
	}
}

func TestClassify_DepartmentContributes(t *testing.T) {
	// Title alone is ambiguous; department carries the signal.
	got := Classify("Team Member", "Procurement", DealContext{})
	assert.Equal(t, model.RoleBlocker, got)
}

func TestClassify_LargeDealPromotesFinance(t *testing.T) {
	small := DealContext{SizeUSD: 50_000}
	large := DealContext{SizeUSD: 250_000}

	assert.Equal(t, model.RoleBlocker, Classify("CFO", "", small))
	assert.Equal(t, model.RoleDecision, Classify("CFO", "", large))
	assert.Equal(t, model.RoleDecision, Classify("Chief Financial Officer", "", large))

	// Non-finance blockers stay blockers regardless of deal size.
	assert.Equal(t, model.RoleBlocker, Classify("Head of Procurement", "", large))
}

func TestClassify_Deterministic(t *testing.T) {
	deal := DealContext{SizeUSD: 250_000, Category: "infrastructure"}
	first := Classify("VP of Engineering", "Platform", deal)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify("VP of Engineering", "Platform", deal))
	}
}
