package classification

import (
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func farmRule(priority int, keywords []string, farmID uuid.UUID) model.AssignmentRule {
	return model.AssignmentRule{
		ID:              uuid.New(),
		RuleType:        model.RuleTypeFarmAssignment,
		Priority:        priority,
		IncludeKeywords: keywords,
		TargetFarmID:    &farmID,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}
}

func moduleRule(priority int, keywords []string, module string) model.AssignmentRule {
	return model.AssignmentRule{
		ID:              uuid.New(),
		RuleType:        model.RuleTypeModuleAssignment,
		Priority:        priority,
		IncludeKeywords: keywords,
		TargetModule:    &module,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}
}

func TestClassifyRunsChainsIndependently(t *testing.T) {
	farmID := uuid.New()
	v := view("Orlen Gaz Sp. z o.o.", "Gospodarstwo Rolne Nowak", "propan 2500L")

	snap := RuleSnapshot{
		UserRules: []model.AssignmentRule{userRule("gas reviewer", 1, []string{"gaz"}, true)},
		FarmRules: []model.AssignmentRule{farmRule(1, []string{"nowak"}, farmID)},
		ModuleRules: []model.AssignmentRule{
			moduleRule(1, []string{"gaz"}, model.ModuleGas),
			moduleRule(2, []string{}, model.ModuleFarmstead),
		},
	}

	res := Classify(v, snap)

	require.NotNil(t, res.AssignedUserID)
	assert.Equal(t, *snap.UserRules[0].AssignedUserID, *res.AssignedUserID)
	require.NotNil(t, res.TargetFarmID)
	assert.Equal(t, farmID, *res.TargetFarmID)
	require.NotNil(t, res.TargetModule)
	assert.Equal(t, model.ModuleGas, *res.TargetModule)
}

func TestClassifyCatchAllModuleFallback(t *testing.T) {
	// An empty-keyword rule at the end of the chain files everything the
	// specific rules miss under FARMSTEAD.
	v := view("Some Vendor", "Some Farm", "office supplies")

	snap := RuleSnapshot{
		ModuleRules: []model.AssignmentRule{
			moduleRule(1, []string{"gaz"}, model.ModuleGas),
			moduleRule(2, []string{"pasza"}, model.ModuleFeeds),
			moduleRule(100, []string{}, model.ModuleFarmstead),
		},
	}

	res := Classify(v, snap)

	assert.Nil(t, res.AssignedUserID)
	assert.Nil(t, res.TargetFarmID)
	require.NotNil(t, res.TargetModule)
	assert.Equal(t, model.ModuleFarmstead, *res.TargetModule)
}

func TestClassifyNoMatchLeavesAllNil(t *testing.T) {
	v := view("Vendor", "Buyer", "")

	res := Classify(v, RuleSnapshot{})
	assert.Nil(t, res.AssignedUserID)
	assert.Nil(t, res.TargetFarmID)
	assert.Nil(t, res.TargetModule)
}

func TestClassifyOneChainFailingDoesNotBlockOthers(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")

	snap := RuleSnapshot{
		UserRules:   []model.AssignmentRule{userRule("miss", 1, []string{"diesel"}, true)},
		ModuleRules: []model.AssignmentRule{moduleRule(1, []string{"gaz"}, model.ModuleGas)},
	}

	res := Classify(v, snap)
	assert.Nil(t, res.AssignedUserID)
	assert.Nil(t, res.TargetFarmID)
	require.NotNil(t, res.TargetModule)
	assert.Equal(t, model.ModuleGas, *res.TargetModule)
}

func TestClassifyMatchedRuleWithoutTargetDecidesNothing(t *testing.T) {
	// A matching rule whose target column is unset must not produce a
	// decision for its chain.
	rule := model.AssignmentRule{
		ID:        uuid.New(),
		RuleType:  model.RuleTypeUserAssignment,
		Priority:  1,
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	res := Classify(view("Vendor", "Buyer", ""), RuleSnapshot{
		UserRules: []model.AssignmentRule{rule},
	})
	assert.Nil(t, res.AssignedUserID)
}

func TestClassifyResultIsACopy(t *testing.T) {
	v := view("Orlen Gaz", "Ferma", "propan")
	snap := RuleSnapshot{
		ModuleRules: []model.AssignmentRule{moduleRule(1, []string{"gaz"}, model.ModuleGas)},
	}

	res := Classify(v, snap)
	require.NotNil(t, res.TargetModule)

	// Mutating the result must not leak back into the snapshot
	*res.TargetModule = model.ModuleSales
	assert.Equal(t, model.ModuleGas, *snap.ModuleRules[0].TargetModule)
}
