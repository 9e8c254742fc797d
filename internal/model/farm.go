package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Farm is a production site; henhouses belong to exactly one farm.
type Farm struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Nip       string     `gorm:"type:varchar(20)" json:"nip"`
	Address   string     `gorm:"type:varchar(255)" json:"address"`
	Henhouses []Henhouse `gorm:"foreignKey:FarmID" json:"henhouses,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (f *Farm) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Henhouse is a single building on a farm
type Henhouse struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID    uuid.UUID `gorm:"type:uuid;not null;index" json:"farm_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Code      string    `gorm:"type:varchar(20);not null" json:"code"`
	AreaM2    int       `gorm:"not null;default:0" json:"area_m2"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Henhouse) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// TaxBusinessEntity is a billing identity invoices are issued to or by.
// Assignment rules may be scoped to a single entity.
type TaxBusinessEntity struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID    *uuid.UUID `gorm:"type:uuid;index" json:"farm_id"`
	Farm      *Farm      `gorm:"foreignKey:FarmID" json:"farm,omitempty"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Nip       string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"nip"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (t *TaxBusinessEntity) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
