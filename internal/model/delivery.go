package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeedDelivery records one feed shipment to a farm. Invoices filed under the
// FEEDS module reference these rows from the UI side.
type FeedDelivery struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"farm_id"`
	Farm        *Farm           `gorm:"foreignKey:FarmID" json:"farm,omitempty"`
	HenhouseID  *uuid.UUID      `gorm:"type:uuid;index" json:"henhouse_id"`
	VendorName  string          `gorm:"type:varchar(255);not null" json:"vendor_name"`
	FeedName    string          `gorm:"type:varchar(255);not null" json:"feed_name"`
	QuantityKg  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"quantity_kg"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_price"`
	InvoiceNo   string          `gorm:"type:varchar(50)" json:"invoice_no"`
	DeliveredAt time.Time       `gorm:"type:date;not null;index" json:"delivered_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (d *FeedDelivery) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// GasDelivery records one gas shipment to a farm (GAS module)
type GasDelivery struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"farm_id"`
	Farm           *Farm           `gorm:"foreignKey:FarmID" json:"farm,omitempty"`
	VendorName     string          `gorm:"type:varchar(255);not null" json:"vendor_name"`
	QuantityLiters decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"quantity_liters"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_price"`
	InvoiceNo      string          `gorm:"type:varchar(50)" json:"invoice_no"`
	DeliveredAt    time.Time       `gorm:"type:date;not null;index" json:"delivered_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (d *GasDelivery) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
