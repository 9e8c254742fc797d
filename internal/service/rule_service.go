package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/internal/classification"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRuleRequest struct {
	RuleType        string   `json:"rule_type" binding:"required,oneof=USER_ASSIGNMENT FARM_ASSIGNMENT MODULE_ASSIGNMENT"`
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description"`
	IncludeKeywords []string `json:"include_keywords"`
	ExcludeKeywords []string `json:"exclude_keywords"`
	TaxEntityID     string   `json:"tax_entity_id"`
	DirectionScope  string   `json:"direction_scope" binding:"omitempty,oneof=PURCHASE SALES"`
	AssignedUserID  string   `json:"assigned_user_id"`
	TargetFarmID    string   `json:"target_farm_id"`
	TargetModule    string   `json:"target_module" binding:"omitempty,oneof=FEEDS PRODUCTION_EXPENSES GAS SALES FARMSTEAD"`
}

type UpdateRuleRequest struct {
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description"`
	Priority        *int     `json:"priority"`
	IncludeKeywords []string `json:"include_keywords"`
	ExcludeKeywords []string `json:"exclude_keywords"`
	TaxEntityID     string   `json:"tax_entity_id"`
	DirectionScope  string   `json:"direction_scope" binding:"omitempty,oneof=PURCHASE SALES"`
	AssignedUserID  string   `json:"assigned_user_id"`
	TargetFarmID    string   `json:"target_farm_id"`
	TargetModule    string   `json:"target_module" binding:"omitempty,oneof=FEEDS PRODUCTION_EXPENSES GAS SALES FARMSTEAD"`
}

type ReorderRulesRequest struct {
	RuleType   string   `json:"rule_type" binding:"required,oneof=USER_ASSIGNMENT FARM_ASSIGNMENT MODULE_ASSIGNMENT"`
	OrderedIDs []string `json:"ordered_ids" binding:"required,min=1"`
}

type RuleResponse struct {
	ID              string   `json:"id"`
	RuleType        string   `json:"rule_type"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Priority        int      `json:"priority"`
	IncludeKeywords []string `json:"include_keywords"`
	ExcludeKeywords []string `json:"exclude_keywords"`
	TaxEntityID     *string  `json:"tax_entity_id"`
	DirectionScope  *string  `json:"direction_scope"`
	AssignedUserID  *string  `json:"assigned_user_id"`
	TargetFarmID    *string  `json:"target_farm_id"`
	TargetModule    *string  `json:"target_module"`
	IsActive        bool     `json:"is_active"`
	CreatedAt       string   `json:"created_at"`
}

// --- Interface ---

type RuleService interface {
	CreateRule(ctx context.Context, req CreateRuleRequest, userID string) (RuleResponse, error)
	UpdateRule(ctx context.Context, id string, req UpdateRuleRequest, userID string) (RuleResponse, error)
	SetRuleActive(ctx context.Context, id string, active bool, userID string) (RuleResponse, error)
	ListRules(ctx context.Context, ruleType string, includeInactive bool, page, limit int) ([]RuleResponse, int64, error)
	ReorderRules(ctx context.Context, req ReorderRulesRequest, userID string) error
	LoadSnapshot(ctx context.Context) (classification.RuleSnapshot, error)
}

type ruleService struct {
	ruleRepo  repository.RuleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewRuleService(
	ruleRepo repository.RuleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) RuleService {
	return &ruleService{
		ruleRepo:  ruleRepo,
		auditRepo: auditRepo,
		txManager: txManager,
	}
}

// --- Implementation ---

func (s *ruleService) CreateRule(ctx context.Context, req CreateRuleRequest, userID string) (RuleResponse, error) {
	include, exclude, err := normalizeKeywords(req.IncludeKeywords, req.ExcludeKeywords)
	if err != nil {
		return RuleResponse{}, err
	}

	rule := model.AssignmentRule{
		RuleType:        req.RuleType,
		Name:            req.Name,
		Description:     req.Description,
		IncludeKeywords: include,
		ExcludeKeywords: exclude,
		IsActive:        true,
	}

	if err := applyRuleScopeAndTarget(&rule, req.TaxEntityID, req.DirectionScope, req.AssignedUserID, req.TargetFarmID, req.TargetModule); err != nil {
		return RuleResponse{}, err
	}

	// New rules go to the end of their chain: priority is read and assigned
	// inside one transaction to keep the max+1 window narrow.
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		priority, prioErr := s.ruleRepo.NextPriority(txCtx, req.RuleType)
		if prioErr != nil {
			return fmt.Errorf("failed to compute next priority: %w", prioErr)
		}
		rule.Priority = priority

		if createErr := s.ruleRepo.Create(txCtx, &rule); createErr != nil {
			return fmt.Errorf("failed to create rule: %w", createErr)
		}

		return s.writeRuleAudit(txCtx, userID, model.ActionCreateRule, &rule, req)
	})
	if err != nil {
		return RuleResponse{}, err
	}

	return toRuleResponse(rule), nil
}

func (s *ruleService) UpdateRule(ctx context.Context, id string, req UpdateRuleRequest, userID string) (RuleResponse, error) {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return RuleResponse{}, fmt.Errorf("invalid rule id: %w", err)
	}

	include, exclude, err := normalizeKeywords(req.IncludeKeywords, req.ExcludeKeywords)
	if err != nil {
		return RuleResponse{}, err
	}

	var rule *model.AssignmentRule
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rule, err = s.ruleRepo.FindByID(txCtx, ruleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("rule not found")
			}
			return fmt.Errorf("failed to fetch rule: %w", err)
		}

		rule.Name = req.Name
		rule.Description = req.Description
		rule.IncludeKeywords = include
		rule.ExcludeKeywords = exclude
		rule.TaxEntityID = nil
		rule.DirectionScope = nil
		rule.AssignedUserID = nil
		rule.TargetFarmID = nil
		rule.TargetModule = nil
		if applyErr := applyRuleScopeAndTarget(rule, req.TaxEntityID, req.DirectionScope, req.AssignedUserID, req.TargetFarmID, req.TargetModule); applyErr != nil {
			return applyErr
		}

		if req.Priority != nil {
			if *req.Priority < 0 {
				return fmt.Errorf("priority must not be negative")
			}
			rule.Priority = *req.Priority
		}

		if saveErr := s.ruleRepo.Update(txCtx, rule); saveErr != nil {
			return fmt.Errorf("failed to update rule: %w", saveErr)
		}

		return s.writeRuleAudit(txCtx, userID, model.ActionUpdateRule, rule, req)
	})
	if err != nil {
		return RuleResponse{}, err
	}

	return toRuleResponse(*rule), nil
}

// SetRuleActive soft-deactivates or re-activates a rule. Rules are never
// hard-deleted: invoice history may reference decisions they produced.
func (s *ruleService) SetRuleActive(ctx context.Context, id string, active bool, userID string) (RuleResponse, error) {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return RuleResponse{}, fmt.Errorf("invalid rule id: %w", err)
	}

	var rule *model.AssignmentRule
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rule, err = s.ruleRepo.FindByID(txCtx, ruleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("rule not found")
			}
			return fmt.Errorf("failed to fetch rule: %w", err)
		}

		if rule.IsActive == active {
			return nil
		}

		rule.IsActive = active
		if saveErr := s.ruleRepo.Update(txCtx, rule); saveErr != nil {
			return fmt.Errorf("failed to update rule: %w", saveErr)
		}

		action := model.ActionDeactivateRule
		if active {
			action = model.ActionActivateRule
		}
		return s.writeRuleAudit(txCtx, userID, action, rule, map[string]bool{"is_active": active})
	})
	if err != nil {
		return RuleResponse{}, err
	}

	return toRuleResponse(*rule), nil
}

func (s *ruleService) ListRules(ctx context.Context, ruleType string, includeInactive bool, page, limit int) ([]RuleResponse, int64, error) {
	if !validRuleType(ruleType) {
		return nil, 0, fmt.Errorf("unknown rule type: %s", ruleType)
	}

	rules, total, err := s.ruleRepo.List(ctx, ruleType, includeInactive, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rules: %w", err)
	}

	res := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		res = append(res, toRuleResponse(r))
	}

	return res, total, nil
}

// ReorderValidationError reports a reorder id list that does not cover its
// chain exactly once.
type ReorderValidationError struct {
	RuleType string
	Reason   string
}

func (e *ReorderValidationError) Error() string {
	return fmt.Sprintf("invalid reorder for %s rules: %s", e.RuleType, e.Reason)
}

// ReorderRules rewrites the priorities of one kind from the given id order.
// This is the administrative re-sequencing counterpart of the max+1 counter:
// instead of trusting client-supplied priority integers, admins submit a
// full ordering and the service renumbers from 1. The list must name every
// rule of the kind exactly once; a partial renumbering would leave stale
// priorities colliding with the fresh 1..N sequence.
func (s *ruleService) ReorderRules(ctx context.Context, req ReorderRulesRequest, userID string) error {
	if !validRuleType(req.RuleType) {
		return fmt.Errorf("unknown rule type: %s", req.RuleType)
	}

	ids := make([]uuid.UUID, 0, len(req.OrderedIDs))
	seen := make(map[uuid.UUID]struct{}, len(req.OrderedIDs))
	for _, raw := range req.OrderedIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid rule id %q: %w", raw, err)
		}
		if _, dup := seen[id]; dup {
			return &ReorderValidationError{RuleType: req.RuleType, Reason: fmt.Sprintf("rule %s listed more than once", id)}
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		chainIDs, err := s.ruleRepo.ListIDs(txCtx, req.RuleType)
		if err != nil {
			return fmt.Errorf("failed to load rule chain: %w", err)
		}
		if len(chainIDs) != len(ids) {
			return &ReorderValidationError{RuleType: req.RuleType, Reason: fmt.Sprintf("order names %d of %d rules", len(ids), len(chainIDs))}
		}
		for _, id := range chainIDs {
			if _, ok := seen[id]; !ok {
				return &ReorderValidationError{RuleType: req.RuleType, Reason: fmt.Sprintf("rule %s is missing from the order", id)}
			}
		}

		if err := s.ruleRepo.SetPriorities(txCtx, req.RuleType, ids); err != nil {
			return fmt.Errorf("failed to reorder rules: %w", err)
		}

		details, _ := json.Marshal(req)
		audit := model.AuditLog{
			Action:     model.ActionReorderRules,
			EntityID:   req.RuleType,
			EntityName: req.RuleType,
			Details:    string(details),
		}
		if parsed, err := uuid.Parse(userID); err == nil {
			audit.UserID = &parsed
		}
		if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
}

// LoadSnapshot reads the three active rule chains in one transaction so a
// classification pass sees a consistent rule-set version.
func (s *ruleService) LoadSnapshot(ctx context.Context) (classification.RuleSnapshot, error) {
	var snap classification.RuleSnapshot
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if snap.UserRules, err = s.ruleRepo.ListActive(txCtx, model.RuleTypeUserAssignment); err != nil {
			return err
		}
		if snap.FarmRules, err = s.ruleRepo.ListActive(txCtx, model.RuleTypeFarmAssignment); err != nil {
			return err
		}
		snap.ModuleRules, err = s.ruleRepo.ListActive(txCtx, model.RuleTypeModuleAssignment)
		return err
	})
	if err != nil {
		return classification.RuleSnapshot{}, fmt.Errorf("failed to load rule snapshot: %w", err)
	}
	return snap, nil
}

// --- Helpers ---

func validRuleType(ruleType string) bool {
	switch ruleType {
	case model.RuleTypeUserAssignment, model.RuleTypeFarmAssignment, model.RuleTypeModuleAssignment:
		return true
	}
	return false
}

// normalizeKeywords trims both sets and rejects empty strings: a keyword
// that matches everything must never reach the matcher.
func normalizeKeywords(include, exclude []string) ([]string, []string, error) {
	normalize := func(raw []string, clause string) ([]string, error) {
		out := make([]string, 0, len(raw))
		for _, kw := range raw {
			trimmed := strings.TrimSpace(kw)
			if trimmed == "" {
				return nil, fmt.Errorf("%s keywords must not contain empty strings", clause)
			}
			out = append(out, trimmed)
		}
		return out, nil
	}

	inc, err := normalize(include, "include")
	if err != nil {
		return nil, nil, err
	}
	exc, err := normalize(exclude, "exclude")
	if err != nil {
		return nil, nil, err
	}
	return inc, exc, nil
}

// applyRuleScopeAndTarget validates and sets the scope filters plus the
// kind-specific target. Exactly one target must be present and it must match
// the rule's kind; direction scope is meaningless for user-assignment rules.
func applyRuleScopeAndTarget(rule *model.AssignmentRule, taxEntityID, directionScope, assignedUserID, targetFarmID, targetModule string) error {
	if taxEntityID != "" {
		parsed, err := uuid.Parse(taxEntityID)
		if err != nil {
			return fmt.Errorf("invalid tax_entity_id: %w", err)
		}
		rule.TaxEntityID = &parsed
	}

	if directionScope != "" {
		if rule.RuleType == model.RuleTypeUserAssignment {
			return fmt.Errorf("direction_scope applies only to farm- and module-assignment rules")
		}
		scope := directionScope
		rule.DirectionScope = &scope
	}

	switch rule.RuleType {
	case model.RuleTypeUserAssignment:
		if assignedUserID == "" {
			return fmt.Errorf("assigned_user_id is required for %s rules", rule.RuleType)
		}
		if targetFarmID != "" || targetModule != "" {
			return fmt.Errorf("only assigned_user_id may be set for %s rules", rule.RuleType)
		}
		parsed, err := uuid.Parse(assignedUserID)
		if err != nil {
			return fmt.Errorf("invalid assigned_user_id: %w", err)
		}
		rule.AssignedUserID = &parsed

	case model.RuleTypeFarmAssignment:
		if targetFarmID == "" {
			return fmt.Errorf("target_farm_id is required for %s rules", rule.RuleType)
		}
		if assignedUserID != "" || targetModule != "" {
			return fmt.Errorf("only target_farm_id may be set for %s rules", rule.RuleType)
		}
		parsed, err := uuid.Parse(targetFarmID)
		if err != nil {
			return fmt.Errorf("invalid target_farm_id: %w", err)
		}
		rule.TargetFarmID = &parsed

	case model.RuleTypeModuleAssignment:
		if targetModule == "" {
			return fmt.Errorf("target_module is required for %s rules", rule.RuleType)
		}
		if assignedUserID != "" || targetFarmID != "" {
			return fmt.Errorf("only target_module may be set for %s rules", rule.RuleType)
		}
		module := targetModule
		rule.TargetModule = &module

	default:
		return fmt.Errorf("unknown rule type: %s", rule.RuleType)
	}

	return nil
}

func (s *ruleService) writeRuleAudit(ctx context.Context, userID, action string, rule *model.AssignmentRule, details interface{}) error {
	detailsJSON, _ := json.Marshal(details)

	audit := model.AuditLog{
		Action:     action,
		EntityID:   rule.ID.String(),
		EntityName: rule.Name,
		Details:    string(detailsJSON),
	}
	if userID != "" {
		if parsed, err := uuid.Parse(userID); err == nil {
			audit.UserID = &parsed
		}
	}

	if err := s.auditRepo.Log(ctx, &audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toRuleResponse(r model.AssignmentRule) RuleResponse {
	resp := RuleResponse{
		ID:              r.ID.String(),
		RuleType:        r.RuleType,
		Name:            r.Name,
		Description:     r.Description,
		Priority:        r.Priority,
		IncludeKeywords: r.IncludeKeywords,
		ExcludeKeywords: r.ExcludeKeywords,
		DirectionScope:  r.DirectionScope,
		TargetModule:    r.TargetModule,
		IsActive:        r.IsActive,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
	if resp.IncludeKeywords == nil {
		resp.IncludeKeywords = []string{}
	}
	if resp.ExcludeKeywords == nil {
		resp.ExcludeKeywords = []string{}
	}
	if r.TaxEntityID != nil {
		s := r.TaxEntityID.String()
		resp.TaxEntityID = &s
	}
	if r.AssignedUserID != nil {
		s := r.AssignedUserID.String()
		resp.AssignedUserID = &s
	}
	if r.TargetFarmID != nil {
		s := r.TargetFarmID.String()
		resp.TargetFarmID = &s
	}
	return resp
}
