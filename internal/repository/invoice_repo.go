package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceListFilter narrows invoice listings; zero values mean "no filter"
type InvoiceListFilter struct {
	Status         string
	PaymentStatus  string
	Direction      string
	TargetModule   string
	AssignedUserID *uuid.UUID
	TargetFarmID   *uuid.UUID
	Unassigned     bool // only invoices with no assigned user (manual triage queue)
	Page           int
	Limit          int
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByInvoiceNo(ctx context.Context, invoiceNo string) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceListFilter) ([]model.Invoice, int64, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]model.Invoice, error)
	ApplyVersionedUpdate(ctx context.Context, id uuid.UUID, version int, updates map[string]interface{}) (bool, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).
		Preload("TaxEntity").Preload("AssignedUser").Preload("TargetFarm").
		First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByInvoiceNo(ctx context.Context, invoiceNo string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "invoice_no = ?", invoiceNo).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceListFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Invoice{})
	query = applyInvoiceFilter(query, filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	fetchQuery := applyInvoiceFilter(db.Preload("TaxEntity").Preload("AssignedUser").Preload("TargetFarm"), filter)
	if err := fetchQuery.Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

// ListByStatus returns up to limit invoices in one status, oldest first.
// Used by the bounded batch re-classification job.
func (r *invoiceRepository) ListByStatus(ctx context.Context, status string, limit int) ([]model.Invoice, error) {
	var invoices []model.Invoice
	if err := GetDB(ctx, r.db).
		Where("status = ?", status).
		Order("created_at asc").
		Limit(limit).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// ApplyVersionedUpdate updates one invoice only if its version column still
// matches. Returns false when the row was changed by someone else; the
// caller maps that to a conflict error instead of losing the update.
func (r *invoiceRepository) ApplyVersionedUpdate(ctx context.Context, id uuid.UUID, version int, updates map[string]interface{}) (bool, error) {
	updates["version"] = version + 1
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func applyInvoiceFilter(query *gorm.DB, filter InvoiceListFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	if filter.TargetModule != "" {
		query = query.Where("target_module = ?", filter.TargetModule)
	}
	if filter.AssignedUserID != nil {
		query = query.Where("assigned_user_id = ?", *filter.AssignedUserID)
	}
	if filter.TargetFarmID != nil {
		query = query.Where("target_farm_id = ?", *filter.TargetFarmID)
	}
	if filter.Unassigned {
		query = query.Where("assigned_user_id IS NULL")
	}
	return query
}
