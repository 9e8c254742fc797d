package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants
const (
	InvoiceStatusNew          = "NEW"
	InvoiceStatusAccepted     = "ACCEPTED"
	InvoiceStatusRejected     = "REJECTED"
	InvoiceStatusSentToOffice = "SENT_TO_OFFICE"
)

// InvoiceDirection enum constants
const (
	DirectionPurchase = "PURCHASE"
	DirectionSales    = "SALES"
)

// PaymentStatus enum constants
const (
	PaymentUnpaid        = "UNPAID"
	PaymentPartiallyPaid = "PARTIALLY_PAID"
	PaymentSuspended     = "SUSPENDED"
	PaymentPaidCash      = "PAID_CASH"
	PaymentPaidTransfer  = "PAID_TRANSFER"
)

// Invoice represents one incoming accounting document. Classification
// (assigned user, target farm, target module) is written by the assignment
// engine and may be overridden manually; every change of status or
// assignment appends an InvoiceAuditEntry.
type Invoice struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNo string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"invoice_no"`
	Direction string    `gorm:"type:varchar(10);not null;index" json:"direction"` // PURCHASE, SALES

	SellerName  string `gorm:"type:varchar(255);not null" json:"seller_name"`
	BuyerName   string `gorm:"type:varchar(255);not null" json:"buyer_name"`
	SellerTaxID string `gorm:"type:varchar(20)" json:"seller_tax_id"`
	BuyerTaxID  string `gorm:"type:varchar(20)" json:"buyer_tax_id"`
	FreeText    string `gorm:"type:text" json:"free_text"` // concatenated line item descriptions

	TaxEntityID *uuid.UUID         `gorm:"type:uuid;index" json:"tax_entity_id"`
	TaxEntity   *TaxBusinessEntity `gorm:"foreignKey:TaxEntityID" json:"tax_entity,omitempty"`

	NetAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_amount"`
	VatAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"vat_amount"`
	GrossAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"gross_amount"`
	IssuedAt    time.Time       `gorm:"type:date;not null;index" json:"issued_at"`

	Status        string `gorm:"type:varchar(20);not null;default:'NEW';index" json:"status"`
	PaymentStatus string `gorm:"type:varchar(20);not null;default:'UNPAID';index" json:"payment_status"`

	AssignedUserID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_user_id"`
	AssignedUser   *User      `gorm:"foreignKey:AssignedUserID" json:"assigned_user,omitempty"`
	TargetFarmID   *uuid.UUID `gorm:"type:uuid;index" json:"target_farm_id"`
	TargetFarm     *Farm      `gorm:"foreignKey:TargetFarmID" json:"target_farm,omitempty"`
	TargetModule   *string    `gorm:"type:varchar(30);index" json:"target_module"`

	// Optimistic concurrency token. Transitions bump it, callers losing the
	// race get a conflict instead of a lost update.
	Version int `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
