package roles

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/model"
)

func candidate(name string, role model.BuyerRole, rank int) *model.Person {
	return &model.Person{Name: name, Role: role, Rank: rank}
}

func countDecisions(candidates []*model.Person) int {
	n := 0
	for _, p := range candidates {
		if p.Member && p.Role == model.RoleDecision {
			n++
		}
	}
	return n
}

func TestFinalize_UnclassifiedExcluded(t *testing.T) {
	people := []*model.Person{
		candidate("Ada", model.RoleDecision, 1),
		candidate("Ben", model.RoleUnclassified, 2),
	}
	Finalize(people, DefaultMaxMembers)

	assert.True(t, people[0].Member)
	assert.False(t, people[1].Member)
}

func TestFinalize_PromotesWhenNoDecision(t *testing.T) {
	people := []*model.Person{
		candidate("Ada", model.RoleStakeholder, 5),
		candidate("Ben", model.RoleChampion, 2),
		candidate("Cal", model.RoleBlocker, 1),
	}
	Finalize(people, DefaultMaxMembers)

	// Exactly one decision maker; the blocker has the strongest rule
	// priority after decision, so Cal is promoted.
	assert.Equal(t, 1, countDecisions(people))
	assert.Equal(t, model.RoleDecision, people[2].Role)
	for _, p := range people {
		assert.True(t, p.Member)
	}
}

func TestFinalize_PromotionTieBrokenByRank(t *testing.T) {
	people := []*model.Person{
		candidate("Ada", model.RoleChampion, 4),
		candidate("Ben", model.RoleChampion, 2),
	}
	Finalize(people, DefaultMaxMembers)

	assert.Equal(t, model.RoleChampion, people[0].Role)
	assert.Equal(t, model.RoleDecision, people[1].Role)
}

func TestFinalize_ExistingDecisionUntouched(t *testing.T) {
	people := []*model.Person{
		candidate("Ada", model.RoleDecision, 3),
		candidate("Ben", model.RoleChampion, 1),
	}
	Finalize(people, DefaultMaxMembers)

	assert.Equal(t, 1, countDecisions(people))
	assert.Equal(t, model.RoleDecision, people[0].Role)
	assert.Equal(t, model.RoleChampion, people[1].Role)
}

func TestFinalize_TrimsOverCap(t *testing.T) {
	var people []*model.Person
	people = append(people, candidate("Decision", model.RoleDecision, 10))
	for i := 0; i < 15; i++ {
		people = append(people, candidate(fmt.Sprintf("Stake%02d", i), model.RoleStakeholder, i+1))
	}

	Finalize(people, 5)

	members := 0
	for _, p := range people {
		if p.Member {
			members++
		}
	}
	assert.Equal(t, 5, members)

	// The decision member survives the trim despite the worst rank.
	require.True(t, people[0].Member)
	assert.Equal(t, model.RoleDecision, people[0].Role)

	// Trimmed people keep their record but lose role and membership.
	trimmed := people[len(people)-1]
	assert.False(t, trimmed.Member)
	assert.Equal(t, model.RoleUnclassified, trimmed.Role)
	assert.Equal(t, "Stake14", trimmed.Name)
}

func TestFinalize_EmptyAndAllUnclassified(t *testing.T) {
	Finalize(nil, DefaultMaxMembers)

	people := []*model.Person{
		candidate("Ada", model.RoleUnclassified, 1),
	}
	Finalize(people, DefaultMaxMembers)
	assert.False(t, people[0].Member)
	assert.Equal(t, 0, countDecisions(people))
}
