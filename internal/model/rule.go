package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleType enum constants
const (
	RuleTypeUserAssignment   = "USER_ASSIGNMENT"
	RuleTypeFarmAssignment   = "FARM_ASSIGNMENT"
	RuleTypeModuleAssignment = "MODULE_ASSIGNMENT"
)

// Business module targets for module-assignment rules
const (
	ModuleFeeds              = "FEEDS"
	ModuleProductionExpenses = "PRODUCTION_EXPENSES"
	ModuleGas                = "GAS"
	ModuleSales              = "SALES"
	ModuleFarmstead          = "FARMSTEAD"
)

// AssignmentRule routes incoming invoices to a reviewer, a farm, or a
// business module. One table holds all three kinds; RuleType decides which
// target column is authoritative. Rules are soft-deactivated, never removed
// while invoice history references them.
type AssignmentRule struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RuleType    string    `gorm:"type:varchar(30);not null;index" json:"rule_type"` // USER_ASSIGNMENT, FARM_ASSIGNMENT, MODULE_ASSIGNMENT
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`

	// Lower priority evaluates first; ties broken by created_at.
	Priority        int      `gorm:"not null;index" json:"priority"`
	IncludeKeywords []string `gorm:"type:jsonb;serializer:json" json:"include_keywords"` // all must occur (empty = no constraint)
	ExcludeKeywords []string `gorm:"type:jsonb;serializer:json" json:"exclude_keywords"` // none may occur (empty = no constraint)

	// Optional scope filters
	TaxEntityID    *uuid.UUID         `gorm:"type:uuid;index" json:"tax_entity_id"`
	TaxEntity      *TaxBusinessEntity `gorm:"foreignKey:TaxEntityID" json:"tax_entity,omitempty"`
	DirectionScope *string            `gorm:"type:varchar(10)" json:"direction_scope"` // PURCHASE or SALES; farm/module kinds only

	// Kind-specific target: exactly one is set, matching RuleType
	AssignedUserID *uuid.UUID `gorm:"type:uuid" json:"assigned_user_id"`
	AssignedUser   *User      `gorm:"foreignKey:AssignedUserID" json:"assigned_user,omitempty"`
	TargetFarmID   *uuid.UUID `gorm:"type:uuid" json:"target_farm_id"`
	TargetFarm     *Farm      `gorm:"foreignKey:TargetFarmID" json:"target_farm,omitempty"`
	TargetModule   *string    `gorm:"type:varchar(30)" json:"target_module"`

	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *AssignmentRule) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
