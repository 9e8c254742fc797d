package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryListFilter narrows delivery listings; zero values mean "no filter"
type DeliveryListFilter struct {
	FarmID *uuid.UUID
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

type FeedDeliveryRepository interface {
	Create(ctx context.Context, delivery *model.FeedDelivery) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.FeedDelivery, error)
	List(ctx context.Context, filter DeliveryListFilter) ([]model.FeedDelivery, int64, error)
}

type feedDeliveryRepository struct {
	db *gorm.DB
}

func NewFeedDeliveryRepository(db *gorm.DB) FeedDeliveryRepository {
	return &feedDeliveryRepository{db: db}
}

func (r *feedDeliveryRepository) Create(ctx context.Context, delivery *model.FeedDelivery) error {
	return GetDB(ctx, r.db).Create(delivery).Error
}

func (r *feedDeliveryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.FeedDelivery{}).Error
}

func (r *feedDeliveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.FeedDelivery, error) {
	var delivery model.FeedDelivery
	if err := GetDB(ctx, r.db).Preload("Farm").First(&delivery, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *feedDeliveryRepository) List(ctx context.Context, filter DeliveryListFilter) ([]model.FeedDelivery, int64, error) {
	var deliveries []model.FeedDelivery
	var total int64

	db := GetDB(ctx, r.db)
	query := applyDeliveryFilter(db.Model(&model.FeedDelivery{}), filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	fetchQuery := applyDeliveryFilter(db.Preload("Farm"), filter)
	if err := fetchQuery.Order("delivered_at desc").Offset(offset).Limit(filter.Limit).Find(&deliveries).Error; err != nil {
		return nil, 0, err
	}

	return deliveries, total, nil
}

type GasDeliveryRepository interface {
	Create(ctx context.Context, delivery *model.GasDelivery) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.GasDelivery, error)
	List(ctx context.Context, filter DeliveryListFilter) ([]model.GasDelivery, int64, error)
}

type gasDeliveryRepository struct {
	db *gorm.DB
}

func NewGasDeliveryRepository(db *gorm.DB) GasDeliveryRepository {
	return &gasDeliveryRepository{db: db}
}

func (r *gasDeliveryRepository) Create(ctx context.Context, delivery *model.GasDelivery) error {
	return GetDB(ctx, r.db).Create(delivery).Error
}

func (r *gasDeliveryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.GasDelivery{}).Error
}

func (r *gasDeliveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.GasDelivery, error) {
	var delivery model.GasDelivery
	if err := GetDB(ctx, r.db).Preload("Farm").First(&delivery, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *gasDeliveryRepository) List(ctx context.Context, filter DeliveryListFilter) ([]model.GasDelivery, int64, error) {
	var deliveries []model.GasDelivery
	var total int64

	db := GetDB(ctx, r.db)
	query := applyDeliveryFilter(db.Model(&model.GasDelivery{}), filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	fetchQuery := applyDeliveryFilter(db.Preload("Farm"), filter)
	if err := fetchQuery.Order("delivered_at desc").Offset(offset).Limit(filter.Limit).Find(&deliveries).Error; err != nil {
		return nil, 0, err
	}

	return deliveries, total, nil
}

func applyDeliveryFilter(query *gorm.DB, filter DeliveryListFilter) *gorm.DB {
	if filter.FarmID != nil {
		query = query.Where("farm_id = ?", *filter.FarmID)
	}
	if filter.From != nil {
		query = query.Where("delivered_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("delivered_at <= ?", *filter.To)
	}
	return query
}
