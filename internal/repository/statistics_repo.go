package repository

import (
	"context"
	"fmt"

	"backend/internal/model"

	"gorm.io/gorm"
)

// StatusCount is one bucket of the invoice dashboard
type StatusCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
	Gross string `json:"gross"`
}

type StatisticsRepository interface {
	CountInvoicesByStatus(ctx context.Context) ([]StatusCount, error)
	CountInvoicesByModule(ctx context.Context) ([]StatusCount, error)
	CountUnassignedInvoices(ctx context.Context) (int64, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) CountInvoicesByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("status as key, COUNT(*) as count, COALESCE(CAST(SUM(gross_amount) AS TEXT), '0') as gross").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count invoices by status: %w", err)
	}
	return counts, nil
}

func (r *statisticsRepository) CountInvoicesByModule(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("COALESCE(target_module, 'UNASSIGNED') as key, COUNT(*) as count, COALESCE(CAST(SUM(gross_amount) AS TEXT), '0') as gross").
		Group("target_module").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count invoices by module: %w", err)
	}
	return counts, nil
}

// CountUnassignedInvoices counts the manual triage queue: invoices no
// user-assignment rule decided.
func (r *statisticsRepository) CountUnassignedInvoices(ctx context.Context) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("assigned_user_id IS NULL AND status = ?", model.InvoiceStatusNew).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
