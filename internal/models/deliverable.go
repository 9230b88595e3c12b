package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Deliverable is a produced file attached to an order.
type Deliverable struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID    string    `gorm:"type:varchar(36);index;not null" json:"orderId"`
	Type       string    `gorm:"type:varchar(10);index;not null" json:"type"`
	FileURL    string    `gorm:"type:varchar(1000);not null" json:"fileUrl"`
	FileName   string    `gorm:"type:varchar(255);not null" json:"fileName"`
	StorageKey string    `gorm:"type:varchar(500)" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName table name
func (Deliverable) TableName() string {
	return "deliverables"
}

// BeforeCreate assigns a random id.
func (d *Deliverable) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(d.ID) == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
