package models

import "time"

// ReferralCode is handed to customers with their delivered song.
type ReferralCode struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Code      string    `gorm:"uniqueIndex;type:varchar(20);not null" json:"code"`
	Email     string    `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	OrderID   string    `gorm:"type:varchar(36);index" json:"orderId"`
	Uses      int       `gorm:"not null;default:0" json:"uses"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// TableName table name
func (ReferralCode) TableName() string {
	return "referral_codes"
}
