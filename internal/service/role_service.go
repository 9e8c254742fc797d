package service

import (
	"context"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // Permission UUIDs
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo      repository.RoleRepository
	txManager repository.TransactionManager
}

func NewRoleService(repo repository.RoleRepository, txManager repository.TransactionManager) RoleService {
	return &roleService{repo: repo, txManager: txManager}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	role, err := s.repo.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role not found: %w", err)
	}

	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	permIDs, err := parsePermissionIDs(req.Permissions)
	if err != nil {
		return nil, err
	}

	role := model.Role{
		Name:        req.Name,
		Description: req.Description,
		IsSystem:    false,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, &role); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		if len(permIDs) > 0 {
			if err := s.repo.AssociatePermissions(txCtx, role.ID, permIDs); err != nil {
				return fmt.Errorf("failed to assign permissions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reload with permissions
	return s.GetRole(ctx, role.ID.String())
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("role not found: %w", err)
	}

	role.Name = req.Name
	role.Description = req.Description

	if err := s.repo.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	return s.GetRole(ctx, id)
}

func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid role id: %w", err)
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("role not found: %w", err)
	}

	if role.IsSystem {
		return fmt.Errorf("cannot delete system role '%s'", role.Name)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Clear associations before deleting
		if err := s.repo.UpdatePermissions(txCtx, role.ID, nil); err != nil {
			return fmt.Errorf("failed to clear permissions: %w", err)
		}
		if err := s.repo.Delete(txCtx, role.ID); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return nil
	})
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	id, err := uuid.Parse(roleID)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	permIDs, err := parsePermissionIDs(req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, fmt.Errorf("role not found: %w", err)
	}

	if err := s.repo.UpdatePermissions(ctx, id, permIDs); err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}

	return s.GetRole(ctx, roleID)
}

func (s *roleService) GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error) {
	codes, err := s.repo.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, fmt.Errorf("role '%s' not found: %w", roleName, err)
	}
	return codes, nil
}

// SeedDefaultRolesAndPermissions creates the permission catalog and the three
// built-in roles if not already present
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	// Define all permissions
	defaultPermissions := []model.Permission{
		{Code: "dashboard.read", Name: "View dashboard & statistics", Group: "dashboard"},
		{Code: "invoices.read", Name: "View invoices", Group: "invoices"},
		{Code: "invoices.write", Name: "Register invoices", Group: "invoices"},
		{Code: "invoices.review", Name: "Accept / reject / transfer invoices", Group: "invoices"},
		{Code: "invoices.assign", Name: "Reassign invoices", Group: "invoices"},
		{Code: "rules.read", Name: "View assignment rules", Group: "rules"},
		{Code: "rules.write", Name: "Manage assignment rules", Group: "rules"},
		{Code: "farms.read", Name: "View farms & henhouses", Group: "farms"},
		{Code: "farms.write", Name: "Manage farms & henhouses", Group: "farms"},
		{Code: "deliveries.read", Name: "View feed & gas deliveries", Group: "deliveries"},
		{Code: "deliveries.write", Name: "Record feed & gas deliveries", Group: "deliveries"},
		{Code: "users.read", Name: "View users", Group: "users"},
		{Code: "users.write", Name: "Manage users", Group: "users"},
		{Code: "users.delete", Name: "Delete users", Group: "users"},
		{Code: "audit.read", Name: "View audit history", Group: "audit"},
		{Code: "roles.manage", Name: "Manage roles & permissions", Group: "roles"},
	}

	roleDefinitions := map[string]struct {
		Description string
		PermCodes   []string
	}{
		model.RoleAdmin: {
			Description: "Administrator with full system access",
			PermCodes: []string{
				"dashboard.read",
				"invoices.read", "invoices.write", "invoices.review", "invoices.assign",
				"rules.read", "rules.write",
				"farms.read", "farms.write",
				"deliveries.read", "deliveries.write",
				"users.read", "users.write", "users.delete",
				"audit.read", "roles.manage",
			},
		},
		model.RoleAccountant: {
			Description: "Accountant reviewing invoices and managing rules",
			PermCodes: []string{
				"dashboard.read",
				"invoices.read", "invoices.write", "invoices.review", "invoices.assign",
				"rules.read", "rules.write",
				"farms.read",
				"deliveries.read", "deliveries.write",
				"users.read",
				"audit.read",
			},
		},
		model.RoleEmployee: {
			Description: "Farm employee working on assigned invoices",
			PermCodes: []string{
				"invoices.read", "invoices.review",
				"farms.read",
				"deliveries.read", "deliveries.write",
			},
		},
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		permByCode := make(map[string]uuid.UUID, len(defaultPermissions))
		for i := range defaultPermissions {
			p := &defaultPermissions[i]
			if err := s.repo.FindOrCreatePermission(txCtx, p); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
			permByCode[p.Code] = p.ID
		}

		for roleName, def := range roleDefinitions {
			role, err := s.repo.FindByName(txCtx, roleName)
			if err != nil {
				role = &model.Role{
					Name:        roleName,
					Description: def.Description,
					IsSystem:    true,
				}
				if err := s.repo.Create(txCtx, role); err != nil {
					return fmt.Errorf("failed to seed role '%s': %w", roleName, err)
				}
			}

			permIDs := make([]uuid.UUID, 0, len(def.PermCodes))
			for _, code := range def.PermCodes {
				if id, ok := permByCode[code]; ok {
					permIDs = append(permIDs, id)
				}
			}
			if err := s.repo.UpdatePermissions(txCtx, role.ID, permIDs); err != nil {
				return fmt.Errorf("failed to assign permissions to role '%s': %w", roleName, err)
			}
		}
		return nil
	})
}

// --- Helpers ---

func parsePermissionIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, pid := range raw {
		parsed, err := uuid.Parse(pid)
		if err != nil {
			return nil, fmt.Errorf("invalid permission id '%s': %w", pid, err)
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
