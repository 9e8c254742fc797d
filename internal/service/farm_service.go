package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type HenhouseInput struct {
	Name   string `json:"name" binding:"required"`
	Code   string `json:"code" binding:"required"`
	AreaM2 int    `json:"area_m2"`
}

type CreateFarmRequest struct {
	Name      string          `json:"name" binding:"required"`
	Nip       string          `json:"nip"`
	Address   string          `json:"address"`
	Henhouses []HenhouseInput `json:"henhouses"`
}

type UpdateFarmRequest struct {
	Name      string          `json:"name" binding:"required"`
	Nip       string          `json:"nip"`
	Address   string          `json:"address"`
	Henhouses []HenhouseInput `json:"henhouses"`
}

type HenhouseResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	AreaM2 int    `json:"area_m2"`
}

type FarmResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Nip       string             `json:"nip"`
	Address   string             `json:"address"`
	Henhouses []HenhouseResponse `json:"henhouses"`
	CreatedAt string             `json:"created_at"`
}

type CreateTaxEntityRequest struct {
	Name   string `json:"name" binding:"required"`
	Nip    string `json:"nip" binding:"required"`
	FarmID string `json:"farm_id"`
}

type TaxEntityResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Nip      string  `json:"nip"`
	FarmID   *string `json:"farm_id"`
	FarmName string  `json:"farm_name,omitempty"`
}

// --- Interface ---

type FarmService interface {
	CreateFarm(ctx context.Context, req CreateFarmRequest, userID string) (FarmResponse, error)
	UpdateFarm(ctx context.Context, id string, req UpdateFarmRequest, userID string) (FarmResponse, error)
	DeleteFarm(ctx context.Context, id string, userID string) error
	GetFarm(ctx context.Context, id string) (FarmResponse, error)
	ListFarms(ctx context.Context, search string, page, limit int) ([]FarmResponse, int64, error)

	CreateTaxEntity(ctx context.Context, req CreateTaxEntityRequest, userID string) (TaxEntityResponse, error)
	DeleteTaxEntity(ctx context.Context, id string, userID string) error
	ListTaxEntities(ctx context.Context, page, limit int) ([]TaxEntityResponse, int64, error)
}

type farmService struct {
	farmRepo      repository.FarmRepository
	taxEntityRepo repository.TaxEntityRepository
	auditRepo     repository.AuditRepository
	txManager     repository.TransactionManager
}

func NewFarmService(
	farmRepo repository.FarmRepository,
	taxEntityRepo repository.TaxEntityRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) FarmService {
	return &farmService{
		farmRepo:      farmRepo,
		taxEntityRepo: taxEntityRepo,
		auditRepo:     auditRepo,
		txManager:     txManager,
	}
}

// --- Farms ---

func (s *farmService) CreateFarm(ctx context.Context, req CreateFarmRequest, userID string) (FarmResponse, error) {
	farm := model.Farm{
		Name:    req.Name,
		Nip:     req.Nip,
		Address: req.Address,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.farmRepo.Create(txCtx, &farm); err != nil {
			return fmt.Errorf("failed to create farm: %w", err)
		}

		henhouses := buildHenhouses(farm.ID, req.Henhouses)
		if err := s.farmRepo.CreateHenhouses(txCtx, henhouses); err != nil {
			return fmt.Errorf("failed to create henhouses: %w", err)
		}
		farm.Henhouses = henhouses

		return s.writeFarmAudit(txCtx, model.ActionCreateFarm, &farm, userID)
	})
	if err != nil {
		return FarmResponse{}, err
	}

	return toFarmResponse(farm), nil
}

// UpdateFarm replaces the farm's henhouse set wholesale; the UI always sends
// the complete list.
func (s *farmService) UpdateFarm(ctx context.Context, id string, req UpdateFarmRequest, userID string) (FarmResponse, error) {
	farmID, err := uuid.Parse(id)
	if err != nil {
		return FarmResponse{}, fmt.Errorf("invalid farm id: %w", err)
	}

	var farm *model.Farm
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		farm, err = s.farmRepo.FindByID(txCtx, farmID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("farm not found")
			}
			return fmt.Errorf("failed to fetch farm: %w", err)
		}

		farm.Name = req.Name
		farm.Nip = req.Nip
		farm.Address = req.Address
		farm.Henhouses = nil
		if err := s.farmRepo.Update(txCtx, farm); err != nil {
			return fmt.Errorf("failed to update farm: %w", err)
		}

		if err := s.farmRepo.DeleteHenhousesByFarmID(txCtx, farm.ID); err != nil {
			return fmt.Errorf("failed to replace henhouses: %w", err)
		}
		henhouses := buildHenhouses(farm.ID, req.Henhouses)
		if err := s.farmRepo.CreateHenhouses(txCtx, henhouses); err != nil {
			return fmt.Errorf("failed to replace henhouses: %w", err)
		}
		farm.Henhouses = henhouses

		return s.writeFarmAudit(txCtx, model.ActionUpdateFarm, farm, userID)
	})
	if err != nil {
		return FarmResponse{}, err
	}

	return toFarmResponse(*farm), nil
}

func (s *farmService) DeleteFarm(ctx context.Context, id string, userID string) error {
	farmID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid farm id: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		farm, err := s.farmRepo.FindByID(txCtx, farmID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("farm not found")
			}
			return fmt.Errorf("failed to fetch farm: %w", err)
		}

		if err := s.farmRepo.DeleteHenhousesByFarmID(txCtx, farm.ID); err != nil {
			return fmt.Errorf("failed to delete henhouses: %w", err)
		}
		if err := s.farmRepo.Delete(txCtx, farm.ID); err != nil {
			return fmt.Errorf("failed to delete farm: %w", err)
		}

		return s.writeFarmAudit(txCtx, model.ActionDeleteFarm, farm, userID)
	})
}

func (s *farmService) GetFarm(ctx context.Context, id string) (FarmResponse, error) {
	farmID, err := uuid.Parse(id)
	if err != nil {
		return FarmResponse{}, fmt.Errorf("invalid farm id: %w", err)
	}

	farm, err := s.farmRepo.FindByID(ctx, farmID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FarmResponse{}, fmt.Errorf("farm not found")
		}
		return FarmResponse{}, fmt.Errorf("failed to fetch farm: %w", err)
	}

	return toFarmResponse(*farm), nil
}

func (s *farmService) ListFarms(ctx context.Context, search string, page, limit int) ([]FarmResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	farms, total, err := s.farmRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list farms: %w", err)
	}

	res := make([]FarmResponse, 0, len(farms))
	for _, f := range farms {
		res = append(res, toFarmResponse(f))
	}
	return res, total, nil
}

// --- Tax business entities ---

func (s *farmService) CreateTaxEntity(ctx context.Context, req CreateTaxEntityRequest, userID string) (TaxEntityResponse, error) {
	if _, err := s.taxEntityRepo.FindByNip(ctx, req.Nip); err == nil {
		return TaxEntityResponse{}, fmt.Errorf("tax entity with NIP %s already exists", req.Nip)
	}

	entity := model.TaxBusinessEntity{
		Name: req.Name,
		Nip:  req.Nip,
	}
	if req.FarmID != "" {
		farmID, err := uuid.Parse(req.FarmID)
		if err != nil {
			return TaxEntityResponse{}, fmt.Errorf("invalid farm id: %w", err)
		}
		if _, err := s.farmRepo.FindByID(ctx, farmID); err != nil {
			return TaxEntityResponse{}, fmt.Errorf("farm not found")
		}
		entity.FarmID = &farmID
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.taxEntityRepo.Create(txCtx, &entity); err != nil {
			return fmt.Errorf("failed to create tax entity: %w", err)
		}

		audit := model.AuditLog{
			UserID:     parseOptionalUUID(userID),
			Action:     model.ActionCreateTaxEntity,
			EntityID:   entity.ID.String(),
			EntityName: entity.Name,
		}
		return s.auditRepo.Log(txCtx, &audit)
	})
	if err != nil {
		return TaxEntityResponse{}, err
	}

	return toTaxEntityResponse(entity), nil
}

func (s *farmService) DeleteTaxEntity(ctx context.Context, id string, userID string) error {
	entityID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid tax entity id: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		entity, err := s.taxEntityRepo.FindByID(txCtx, entityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("tax entity not found")
			}
			return fmt.Errorf("failed to fetch tax entity: %w", err)
		}

		if err := s.taxEntityRepo.Delete(txCtx, entity.ID); err != nil {
			return fmt.Errorf("failed to delete tax entity: %w", err)
		}

		audit := model.AuditLog{
			UserID:     parseOptionalUUID(userID),
			Action:     model.ActionDeleteTaxEntity,
			EntityID:   entity.ID.String(),
			EntityName: entity.Name,
		}
		return s.auditRepo.Log(txCtx, &audit)
	})
}

func (s *farmService) ListTaxEntities(ctx context.Context, page, limit int) ([]TaxEntityResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	entities, total, err := s.taxEntityRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tax entities: %w", err)
	}

	res := make([]TaxEntityResponse, 0, len(entities))
	for _, e := range entities {
		res = append(res, toTaxEntityResponse(e))
	}
	return res, total, nil
}

// --- Helpers ---

func buildHenhouses(farmID uuid.UUID, inputs []HenhouseInput) []model.Henhouse {
	henhouses := make([]model.Henhouse, 0, len(inputs))
	for _, h := range inputs {
		henhouses = append(henhouses, model.Henhouse{
			FarmID: farmID,
			Name:   h.Name,
			Code:   h.Code,
			AreaM2: h.AreaM2,
		})
	}
	return henhouses
}

func (s *farmService) writeFarmAudit(ctx context.Context, action string, farm *model.Farm, userID string) error {
	details, _ := json.Marshal(map[string]interface{}{
		"name":      farm.Name,
		"nip":       farm.Nip,
		"henhouses": len(farm.Henhouses),
	})
	audit := model.AuditLog{
		UserID:     parseOptionalUUID(userID),
		Action:     action,
		EntityID:   farm.ID.String(),
		EntityName: farm.Name,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, &audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toFarmResponse(farm model.Farm) FarmResponse {
	henhouses := make([]HenhouseResponse, 0, len(farm.Henhouses))
	for _, h := range farm.Henhouses {
		henhouses = append(henhouses, HenhouseResponse{
			ID:     h.ID.String(),
			Name:   h.Name,
			Code:   h.Code,
			AreaM2: h.AreaM2,
		})
	}
	return FarmResponse{
		ID:        farm.ID.String(),
		Name:      farm.Name,
		Nip:       farm.Nip,
		Address:   farm.Address,
		Henhouses: henhouses,
		CreatedAt: farm.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toTaxEntityResponse(entity model.TaxBusinessEntity) TaxEntityResponse {
	resp := TaxEntityResponse{
		ID:   entity.ID.String(),
		Name: entity.Name,
		Nip:  entity.Nip,
	}
	if entity.FarmID != nil {
		farmID := entity.FarmID.String()
		resp.FarmID = &farmID
	}
	if entity.Farm != nil {
		resp.FarmName = entity.Farm.Name
	}
	return resp
}
