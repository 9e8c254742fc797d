package classification

import (
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRule(name string, priority int, keywords []string, active bool) model.AssignmentRule {
	userID := uuid.New()
	return model.AssignmentRule{
		ID:              uuid.New(),
		RuleType:        model.RuleTypeUserAssignment,
		Name:            name,
		Priority:        priority,
		IncludeKeywords: keywords,
		AssignedUserID:  &userID,
		IsActive:        active,
		CreatedAt:       time.Now(),
	}
}

func TestEvaluatePicksLowestPriorityMatch(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")

	first := userRule("first", 1, []string{"gaz"}, true)
	second := userRule("second", 2, []string{"gaz"}, true)

	// Repository order must not matter
	got := Evaluate([]model.AssignmentRule{second, first}, v)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestEvaluateSkipsNonMatchingHigherPriorityRules(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")

	miss := userRule("miss", 1, []string{"diesel"}, true)
	hit := userRule("hit", 5, []string{"gaz"}, true)

	got := Evaluate([]model.AssignmentRule{miss, hit}, v)
	require.NotNil(t, got)
	assert.Equal(t, hit.ID, got.ID)
}

func TestEvaluateIgnoresInactiveRules(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")

	inactive := userRule("inactive", 1, []string{"gaz"}, false)
	active := userRule("active", 2, []string{"gaz"}, true)

	got := Evaluate([]model.AssignmentRule{inactive, active}, v)
	require.NotNil(t, got)
	assert.Equal(t, active.ID, got.ID)

	assert.Nil(t, Evaluate([]model.AssignmentRule{inactive}, v))
}

func TestEvaluateNoMatchReturnsNil(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")
	assert.Nil(t, Evaluate(nil, v))
	assert.Nil(t, Evaluate([]model.AssignmentRule{userRule("miss", 1, []string{"diesel"}, true)}, v))
}

func TestEvaluateDuplicatePriorityBreaksTieOnCreatedAt(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")

	older := userRule("older", 3, []string{"gaz"}, true)
	older.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := userRule("newer", 3, []string{"gaz"}, true)
	newer.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	got := Evaluate([]model.AssignmentRule{newer, older}, v)
	require.NotNil(t, got)
	assert.Equal(t, older.ID, got.ID)
}

func TestEvaluateIdenticalTimestampBreaksTieOnID(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := userRule("a", 3, []string{"gaz"}, true)
	a.CreatedAt = created
	b := userRule("b", 3, []string{"gaz"}, true)
	b.CreatedAt = created

	want := a.ID
	if b.ID.String() < a.ID.String() {
		want = b.ID
	}

	got := Evaluate([]model.AssignmentRule{a, b}, v)
	require.NotNil(t, got)
	assert.Equal(t, want, got.ID)

	// Same answer regardless of input order
	got = Evaluate([]model.AssignmentRule{b, a}, v)
	require.NotNil(t, got)
	assert.Equal(t, want, got.ID)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")

	rules := []model.AssignmentRule{
		userRule("r1", 2, []string{"gaz"}, true),
		userRule("r2", 1, []string{"diesel"}, true),
		userRule("r3", 3, []string{"propan"}, true),
		userRule("r4", 1, []string{"ferma"}, false),
	}

	first := Evaluate(rules, v)
	require.NotNil(t, first)
	for i := 0; i < 10; i++ {
		got := Evaluate(rules, v)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
	}
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")

	rules := []model.AssignmentRule{
		userRule("r1", 3, []string{"gaz"}, true),
		userRule("r2", 1, []string{"gaz"}, true),
		userRule("r3", 2, []string{"gaz"}, false),
	}
	originalIDs := []uuid.UUID{rules[0].ID, rules[1].ID, rules[2].ID}

	Evaluate(rules, v)

	for i, id := range originalIDs {
		assert.Equal(t, id, rules[i].ID, "input slice order changed at %d", i)
	}
}
