package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("User").Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// InvoiceAuditRepository is the append-only invoice history store. There is
// deliberately no update or delete.
type InvoiceAuditRepository interface {
	Append(ctx context.Context, entry *model.InvoiceAuditEntry) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceAuditEntry, error)
	CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)
}

type invoiceAuditRepository struct {
	db *gorm.DB
}

func NewInvoiceAuditRepository(db *gorm.DB) InvoiceAuditRepository {
	return &invoiceAuditRepository{db: db}
}

func (r *invoiceAuditRepository) Append(ctx context.Context, entry *model.InvoiceAuditEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *invoiceAuditRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceAuditEntry, error) {
	var entries []model.InvoiceAuditEntry
	if err := GetDB(ctx, r.db).
		Preload("Actor").
		Where("invoice_id = ?", invoiceID).
		Order("created_at asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *invoiceAuditRepository) CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.InvoiceAuditEntry{}).
		Where("invoice_id = ?", invoiceID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
