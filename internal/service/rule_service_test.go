package service

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRuleAppendsToEndOfChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:        model.RuleTypeUserAssignment,
		Name:            "gas invoices",
		IncludeKeywords: []string{"gaz"},
		AssignedUserID:  uuid.NewString(),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Priority)
	assert.True(t, first.IsActive)

	second, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:        model.RuleTypeUserAssignment,
		Name:            "feed invoices",
		IncludeKeywords: []string{"pasza"},
		AssignedUserID:  uuid.NewString(),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Priority)

	// Chains number independently
	moduleRule, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:     model.RuleTypeModuleAssignment,
		Name:         "gas module",
		TargetModule: model.ModuleGas,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, moduleRule.Priority)
}

func TestCreateRuleWritesAuditLog(t *testing.T) {
	env := newTestEnv(t)
	adminID := uuid.NewString()

	created, err := env.rules.CreateRule(context.Background(), CreateRuleRequest{
		RuleType:     model.RuleTypeModuleAssignment,
		Name:         "gas module",
		TargetModule: model.ModuleGas,
	}, adminID)
	require.NoError(t, err)

	logs, _, err := env.auditRepo.List(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionCreateRule, logs[0].Action)
	assert.Equal(t, created.ID, logs[0].EntityID)
	assert.Equal(t, "gas module", logs[0].EntityName)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, adminID, logs[0].UserID.String())
}

func TestCreateRuleValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRuleRequest
	}{
		{
			"user rule without assignee",
			CreateRuleRequest{RuleType: model.RuleTypeUserAssignment, Name: "r"},
		},
		{
			"user rule with module target",
			CreateRuleRequest{RuleType: model.RuleTypeUserAssignment, Name: "r", AssignedUserID: uuid.NewString(), TargetModule: model.ModuleGas},
		},
		{
			"farm rule without farm",
			CreateRuleRequest{RuleType: model.RuleTypeFarmAssignment, Name: "r"},
		},
		{
			"module rule without module",
			CreateRuleRequest{RuleType: model.RuleTypeModuleAssignment, Name: "r"},
		},
		{
			"direction scope on user rule",
			CreateRuleRequest{RuleType: model.RuleTypeUserAssignment, Name: "r", AssignedUserID: uuid.NewString(), DirectionScope: model.DirectionSales},
		},
		{
			"empty include keyword",
			CreateRuleRequest{RuleType: model.RuleTypeModuleAssignment, Name: "r", TargetModule: model.ModuleGas, IncludeKeywords: []string{"  "}},
		},
		{
			"malformed assignee id",
			CreateRuleRequest{RuleType: model.RuleTypeUserAssignment, Name: "r", AssignedUserID: "not-a-uuid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.rules.CreateRule(ctx, tt.req, "")
			assert.Error(t, err)
		})
	}

	// No half-created rules and no audit noise from rejected requests
	rules, total, err := env.rules.ListRules(ctx, model.RuleTypeUserAssignment, true, 1, 50)
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Zero(t, total)
	assert.Empty(t, env.auditActions(t))
}

func TestUpdateRuleReplacesScopeAndTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:        model.RuleTypeModuleAssignment,
		Name:            "gas module",
		IncludeKeywords: []string{"gaz"},
		DirectionScope:  model.DirectionPurchase,
		TargetModule:    model.ModuleGas,
	}, "")
	require.NoError(t, err)

	newPriority := 7
	updated, err := env.rules.UpdateRule(ctx, created.ID, UpdateRuleRequest{
		Name:            "sales module",
		Priority:        &newPriority,
		IncludeKeywords: []string{"sprzedaz"},
		TargetModule:    model.ModuleSales,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "sales module", updated.Name)
	assert.Equal(t, 7, updated.Priority)
	assert.Equal(t, []string{"sprzedaz"}, updated.IncludeKeywords)
	require.NotNil(t, updated.TargetModule)
	assert.Equal(t, model.ModuleSales, *updated.TargetModule)
	// Scope not present in the update request is cleared, not kept
	assert.Nil(t, updated.DirectionScope)

	assert.Equal(t, []string{model.ActionUpdateRule, model.ActionCreateRule}, env.auditActions(t))
}

func TestUpdateRuleRejectsNegativePriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:     model.RuleTypeModuleAssignment,
		Name:         "gas module",
		TargetModule: model.ModuleGas,
	}, "")
	require.NoError(t, err)

	bad := -1
	_, err = env.rules.UpdateRule(ctx, created.ID, UpdateRuleRequest{
		Name:         "gas module",
		Priority:     &bad,
		TargetModule: model.ModuleGas,
	}, "")
	assert.Error(t, err)
}

func TestSetRuleActiveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:     model.RuleTypeModuleAssignment,
		Name:         "gas module",
		TargetModule: model.ModuleGas,
	}, "")
	require.NoError(t, err)

	deactivated, err := env.rules.SetRuleActive(ctx, created.ID, false, "")
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	// Second deactivation changes nothing and writes no audit entry
	again, err := env.rules.SetRuleActive(ctx, created.ID, false, "")
	require.NoError(t, err)
	assert.False(t, again.IsActive)
	assert.Equal(t, 1, countAction(env.auditActions(t), model.ActionDeactivateRule))

	reactivated, err := env.rules.SetRuleActive(ctx, created.ID, true, "")
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)
	assert.Equal(t, 1, countAction(env.auditActions(t), model.ActionActivateRule))
}

func TestListRulesFiltersInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	active, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType: model.RuleTypeModuleAssignment, Name: "active", TargetModule: model.ModuleGas,
	}, "")
	require.NoError(t, err)
	inactive, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType: model.RuleTypeModuleAssignment, Name: "inactive", TargetModule: model.ModuleFeeds,
	}, "")
	require.NoError(t, err)
	_, err = env.rules.SetRuleActive(ctx, inactive.ID, false, "")
	require.NoError(t, err)

	rules, total, err := env.rules.ListRules(ctx, model.RuleTypeModuleAssignment, false, 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rules, 1)
	assert.Equal(t, active.ID, rules[0].ID)

	rules, total, err = env.rules.ListRules(ctx, model.RuleTypeModuleAssignment, true, 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rules, 2)

	_, _, err = env.rules.ListRules(ctx, "PAYMENT_ASSIGNMENT", false, 1, 50)
	assert.Error(t, err)
}

func TestReorderRulesRenumbersFromOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		created, err := env.rules.CreateRule(ctx, CreateRuleRequest{
			RuleType: model.RuleTypeModuleAssignment, Name: name, TargetModule: model.ModuleGas,
		}, "")
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	// Reverse the chain
	err := env.rules.ReorderRules(ctx, ReorderRulesRequest{
		RuleType:   model.RuleTypeModuleAssignment,
		OrderedIDs: []string{ids[2], ids[1], ids[0]},
	}, "")
	require.NoError(t, err)

	rules, _, err := env.rules.ListRules(ctx, model.RuleTypeModuleAssignment, true, 1, 50)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, ids[2], rules[0].ID)
	assert.Equal(t, 1, rules[0].Priority)
	assert.Equal(t, ids[1], rules[1].ID)
	assert.Equal(t, 2, rules[1].Priority)
	assert.Equal(t, ids[0], rules[2].ID)
	assert.Equal(t, 3, rules[2].Priority)

	assert.Equal(t, 1, countAction(env.auditActions(t), model.ActionReorderRules))
}

func TestReorderRulesRequiresTheFullChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		created, err := env.rules.CreateRule(ctx, CreateRuleRequest{
			RuleType: model.RuleTypeModuleAssignment, Name: name, TargetModule: model.ModuleGas,
		}, "")
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	// A rule in another chain must not count towards module coverage
	foreign, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType: model.RuleTypeUserAssignment, Name: "user", AssignedUserID: uuid.NewString(),
	}, "")
	require.NoError(t, err)

	var reorderErr *ReorderValidationError

	// Partial list
	err = env.rules.ReorderRules(ctx, ReorderRulesRequest{
		RuleType:   model.RuleTypeModuleAssignment,
		OrderedIDs: []string{ids[1], ids[0]},
	}, "")
	require.ErrorAs(t, err, &reorderErr)

	// Duplicated id
	err = env.rules.ReorderRules(ctx, ReorderRulesRequest{
		RuleType:   model.RuleTypeModuleAssignment,
		OrderedIDs: []string{ids[0], ids[0], ids[1]},
	}, "")
	require.ErrorAs(t, err, &reorderErr)

	// Right length but one id from another chain
	err = env.rules.ReorderRules(ctx, ReorderRulesRequest{
		RuleType:   model.RuleTypeModuleAssignment,
		OrderedIDs: []string{ids[0], ids[1], foreign.ID},
	}, "")
	require.ErrorAs(t, err, &reorderErr)

	// Unknown chain name
	err = env.rules.ReorderRules(ctx, ReorderRulesRequest{
		RuleType:   "PAYMENT_ASSIGNMENT",
		OrderedIDs: []string{ids[0]},
	}, "")
	require.Error(t, err)

	// Nothing was renumbered and no audit entry was written
	rules, _, err := env.rules.ListRules(ctx, model.RuleTypeModuleAssignment, true, 1, 50)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	for i, r := range rules {
		assert.Equal(t, ids[i], r.ID)
		assert.Equal(t, i+1, r.Priority)
	}
	assert.Zero(t, countAction(env.auditActions(t), model.ActionReorderRules))
}

func TestLoadSnapshotOnlyActiveRulesPerKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType: model.RuleTypeUserAssignment, Name: "user", AssignedUserID: uuid.NewString(),
	}, "")
	require.NoError(t, err)
	_, err = env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType: model.RuleTypeFarmAssignment, Name: "farm", TargetFarmID: uuid.NewString(),
	}, "")
	require.NoError(t, err)
	moduleRule, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType: model.RuleTypeModuleAssignment, Name: "module", TargetModule: model.ModuleGas,
	}, "")
	require.NoError(t, err)
	_, err = env.rules.SetRuleActive(ctx, moduleRule.ID, false, "")
	require.NoError(t, err)

	snap, err := env.rules.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.UserRules, 1)
	assert.Len(t, snap.FarmRules, 1)
	assert.Empty(t, snap.ModuleRules)
}
