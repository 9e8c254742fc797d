package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *model.AssignmentRule) error
	Update(ctx context.Context, rule *model.AssignmentRule) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AssignmentRule, error)
	List(ctx context.Context, ruleType string, includeInactive bool, page, limit int) ([]model.AssignmentRule, int64, error)
	ListActive(ctx context.Context, ruleType string) ([]model.AssignmentRule, error)
	NextPriority(ctx context.Context, ruleType string) (int, error)
	ListIDs(ctx context.Context, ruleType string) ([]uuid.UUID, error)
	SetPriorities(ctx context.Context, ruleType string, orderedIDs []uuid.UUID) error
}

type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.AssignmentRule) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *ruleRepository) Update(ctx context.Context, rule *model.AssignmentRule) error {
	return GetDB(ctx, r.db).Save(rule).Error
}

func (r *ruleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.AssignmentRule, error) {
	var rule model.AssignmentRule
	if err := GetDB(ctx, r.db).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) List(ctx context.Context, ruleType string, includeInactive bool, page, limit int) ([]model.AssignmentRule, int64, error) {
	var rules []model.AssignmentRule
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.AssignmentRule{}).Where("rule_type = ?", ruleType)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("priority asc, created_at asc").Offset(offset).Limit(limit).Find(&rules).Error; err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}

// ListActive returns the active rules of one kind without any ordering
// guarantee; the chain evaluator sorts for itself.
func (r *ruleRepository) ListActive(ctx context.Context, ruleType string) ([]model.AssignmentRule, error) {
	var rules []model.AssignmentRule
	if err := GetDB(ctx, r.db).
		Where("rule_type = ? AND is_active = ?", ruleType, true).
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// NextPriority returns max(priority)+1 for the given kind. Callers should
// invoke it inside the transaction that creates the rule; a lost race
// produces a duplicate priority, which the evaluator resolves via the
// created_at tiebreak.
func (r *ruleRepository) NextPriority(ctx context.Context, ruleType string) (int, error) {
	var max int
	if err := GetDB(ctx, r.db).Model(&model.AssignmentRule{}).
		Where("rule_type = ?", ruleType).
		Select("COALESCE(MAX(priority), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

// ListIDs returns the ids of every rule of one kind, active or not
func (r *ruleRepository) ListIDs(ctx context.Context, ruleType string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := GetDB(ctx, r.db).Model(&model.AssignmentRule{}).
		Where("rule_type = ?", ruleType).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SetPriorities rewrites the priorities of one kind to match the given id
// order, starting at 1. Used by the administrative re-sequencing endpoint.
// Callers must verify the id list covers the chain exactly; an id from
// another chain matches zero rows here without an error.
func (r *ruleRepository) SetPriorities(ctx context.Context, ruleType string, orderedIDs []uuid.UUID) error {
	db := GetDB(ctx, r.db)
	for i, id := range orderedIDs {
		if err := db.Model(&model.AssignmentRule{}).
			Where("id = ? AND rule_type = ?", id, ruleType).
			Update("priority", i+1).Error; err != nil {
			return err
		}
	}
	return nil
}
