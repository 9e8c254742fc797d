package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Administrative audit actions
const (
	ActionCreateRule      = "CREATE_RULE"
	ActionUpdateRule      = "UPDATE_RULE"
	ActionActivateRule    = "ACTIVATE_RULE"
	ActionDeactivateRule  = "DEACTIVATE_RULE"
	ActionReorderRules    = "REORDER_RULES"
	ActionCreateFarm      = "CREATE_FARM"
	ActionUpdateFarm      = "UPDATE_FARM"
	ActionDeleteFarm      = "DELETE_FARM"
	ActionCreateTaxEntity = "CREATE_TAX_ENTITY"
	ActionDeleteTaxEntity = "DELETE_TAX_ENTITY"
	ActionCreateDelivery  = "CREATE_DELIVERY"
	ActionDeleteDelivery  = "DELETE_DELIVERY"
	ActionRegisterInvoice = "REGISTER_INVOICE"
	ActionReclassifyBatch = "RECLASSIFY_BATCH"
)

// Invoice lifecycle audit actions, one per applied transition
const (
	InvoiceActionAccepted             = "ACCEPTED"
	InvoiceActionHeld                 = "HELD"
	InvoiceActionRejected             = "REJECTED"
	InvoiceActionTransferredToOffice  = "TRANSFERRED_TO_OFFICE"
	InvoiceActionPaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
	InvoiceActionEmployeeAssigned     = "EMPLOYEE_ASSIGNED"
	InvoiceActionModuleChanged        = "MODULE_CHANGED"
)

// AuditLog tracks Who, What, and When for administrative changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for automated jobs
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// InvoiceAuditEntry is the append-only history of one invoice. Entries are
// written in the same transaction as the state change they describe and are
// never updated or deleted afterwards.
type InvoiceAuditEntry struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Invoice       *Invoice   `gorm:"foreignKey:InvoiceID" json:"-"`
	Action        string     `gorm:"type:varchar(40);not null;index" json:"action"`
	ActorUserID   *uuid.UUID `gorm:"type:uuid" json:"actor_user_id"` // Nullable for the rule engine
	Actor         *User      `gorm:"foreignKey:ActorUserID" json:"actor,omitempty"`
	PreviousValue *string    `gorm:"type:varchar(255)" json:"previous_value"`
	NewValue      *string    `gorm:"type:varchar(255)" json:"new_value"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}

func (e *InvoiceAuditEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
