package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FarmRepository interface {
	Create(ctx context.Context, farm *model.Farm) error
	Update(ctx context.Context, farm *model.Farm) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Farm, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Farm, int64, error)
	DeleteHenhousesByFarmID(ctx context.Context, farmID uuid.UUID) error
	CreateHenhouses(ctx context.Context, henhouses []model.Henhouse) error
}

type farmRepository struct {
	db *gorm.DB
}

func NewFarmRepository(db *gorm.DB) FarmRepository {
	return &farmRepository{db: db}
}

func (r *farmRepository) Create(ctx context.Context, farm *model.Farm) error {
	return GetDB(ctx, r.db).Create(farm).Error
}

func (r *farmRepository) Update(ctx context.Context, farm *model.Farm) error {
	return GetDB(ctx, r.db).Save(farm).Error
}

func (r *farmRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Farm{}).Error
}

func (r *farmRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Farm, error) {
	var farm model.Farm
	if err := GetDB(ctx, r.db).Preload("Henhouses").First(&farm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &farm, nil
}

func (r *farmRepository) List(ctx context.Context, search string, page, limit int) ([]model.Farm, int64, error) {
	var farms []model.Farm
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Farm{})
	if search != "" {
		query = query.Where("name ILIKE ? OR nip LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Henhouses")
	if search != "" {
		fetchQuery = fetchQuery.Where("name ILIKE ? OR nip LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if err := fetchQuery.Order("name asc").Offset(offset).Limit(limit).Find(&farms).Error; err != nil {
		return nil, 0, err
	}

	return farms, total, nil
}

func (r *farmRepository) DeleteHenhousesByFarmID(ctx context.Context, farmID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("farm_id = ?", farmID).Delete(&model.Henhouse{}).Error
}

func (r *farmRepository) CreateHenhouses(ctx context.Context, henhouses []model.Henhouse) error {
	if len(henhouses) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&henhouses).Error
}

type TaxEntityRepository interface {
	Create(ctx context.Context, entity *model.TaxBusinessEntity) error
	Update(ctx context.Context, entity *model.TaxBusinessEntity) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TaxBusinessEntity, error)
	FindByNip(ctx context.Context, nip string) (*model.TaxBusinessEntity, error)
	List(ctx context.Context, page, limit int) ([]model.TaxBusinessEntity, int64, error)
}

type taxEntityRepository struct {
	db *gorm.DB
}

func NewTaxEntityRepository(db *gorm.DB) TaxEntityRepository {
	return &taxEntityRepository{db: db}
}

func (r *taxEntityRepository) Create(ctx context.Context, entity *model.TaxBusinessEntity) error {
	return GetDB(ctx, r.db).Create(entity).Error
}

func (r *taxEntityRepository) Update(ctx context.Context, entity *model.TaxBusinessEntity) error {
	return GetDB(ctx, r.db).Save(entity).Error
}

func (r *taxEntityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.TaxBusinessEntity{}).Error
}

func (r *taxEntityRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.TaxBusinessEntity, error) {
	var entity model.TaxBusinessEntity
	if err := GetDB(ctx, r.db).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *taxEntityRepository) FindByNip(ctx context.Context, nip string) (*model.TaxBusinessEntity, error) {
	var entity model.TaxBusinessEntity
	if err := GetDB(ctx, r.db).First(&entity, "nip = ?", nip).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *taxEntityRepository) List(ctx context.Context, page, limit int) ([]model.TaxBusinessEntity, int64, error) {
	var entities []model.TaxBusinessEntity
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.TaxBusinessEntity{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Farm").Order("name asc").Offset(offset).Limit(limit).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return entities, total, nil
}
