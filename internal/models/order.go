package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order is a song order. Rows are never deleted, refunds are a status.
type Order struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderNumber string `gorm:"uniqueIndex;type:varchar(40);not null" json:"orderNumber"`

	PackageType     string `gorm:"type:varchar(20);not null" json:"packageType"`
	SelectedBundle  string `gorm:"type:varchar(30);not null;default:none" json:"selectedBundle"`
	BumpKaraoke     bool   `gorm:"not null;default:false" json:"bumpKaraoke"`
	BumpRush        bool   `gorm:"not null;default:false" json:"bumpRush"`
	BumpGift        bool   `gorm:"not null;default:false" json:"bumpGift"`
	HasCustomLyrics bool   `gorm:"not null;default:false" json:"hasCustomLyrics"`
	CustomLyrics    string `gorm:"type:text" json:"customLyrics,omitempty"`
	BasePrice       int    `gorm:"not null;default:0" json:"basePrice"`
	TotalPrice      int    `gorm:"not null;default:0" json:"totalPrice"`

	RecipientName string `gorm:"type:varchar(120);not null" json:"recipientName"`
	Occasion      string `gorm:"type:varchar(20);index;not null" json:"occasion"`
	Relationship  string `gorm:"type:varchar(120)" json:"relationship"`
	Story         string `gorm:"type:text;not null" json:"story"`
	Genre         string `gorm:"type:varchar(40)" json:"genre"`
	Mood          int    `gorm:"not null;default:3" json:"mood"`

	CustomerName  string `gorm:"type:varchar(120);not null" json:"customerName"`
	CustomerEmail string `gorm:"type:varchar(255);index;not null" json:"customerEmail"`

	StripeSessionID       string  `gorm:"type:varchar(255);index" json:"stripeSessionId,omitempty"`
	StripePaymentIntentID *string `gorm:"type:varchar(255);index" json:"stripePaymentIntentId,omitempty"`

	Status            string      `gorm:"type:varchar(20);index;not null" json:"status"`
	Priority          *string     `gorm:"type:varchar(10);index" json:"priority"`
	PriorityReasons   StringArray `gorm:"type:json" json:"priorityReasons"`
	SuggestedDeadline *time.Time  `json:"suggestedDeadline"`
	DeliveryURL       *string     `gorm:"type:varchar(500)" json:"deliveryUrl"`
	DeliveredAt       *time.Time  `json:"deliveredAt"`
	CreatedAt         time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt         time.Time   `gorm:"index" json:"updatedAt"`

	Deliverables []Deliverable `gorm:"foreignKey:OrderID" json:"deliverables,omitempty"`
}

// TableName table name
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns a random id.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(o.ID) == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// PriorityValue returns the priority or "" when unassigned.
func (o *Order) PriorityValue() string {
	if o == nil || o.Priority == nil {
		return ""
	}
	return *o.Priority
}
