package database

import (
	"backend/internal/logger"
	"backend/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		logger.L().Warn("failed to auto-migrate models", zap.Error(err))
	}

	return db, nil
}

// Migrate auto-migrates every persisted model; also used by sqlite-backed tests
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Role{},
		&model.Permission{},
		&model.Farm{},
		&model.Henhouse{},
		&model.TaxBusinessEntity{},
		&model.AssignmentRule{},
		&model.Invoice{},
		&model.InvoiceAuditEntry{},
		&model.AuditLog{},
		&model.FeedDelivery{},
		&model.GasDelivery{},
	)
}
