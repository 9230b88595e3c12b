package repository

import (
	"errors"
	"strings"

	"github.com/melodiemoment/api/internal/models"

	"gorm.io/gorm"
)

// ReferralRepository referral code data access
type ReferralRepository interface {
	GetByEmail(email string) (*models.ReferralCode, error)
	GetByCode(code string) (*models.ReferralCode, error)
	Create(code *models.ReferralCode) error
}

// GormReferralRepository GORM implementation
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository creates a referral repository.
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

func (r *GormReferralRepository) GetByEmail(email string) (*models.ReferralCode, error) {
	return r.first(r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *GormReferralRepository) GetByCode(code string) (*models.ReferralCode, error) {
	return r.first(r.db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))))
}

func (r *GormReferralRepository) Create(code *models.ReferralCode) error {
	code.Email = strings.ToLower(strings.TrimSpace(code.Email))
	return r.db.Create(code).Error
}

func (r *GormReferralRepository) first(query *gorm.DB) (*models.ReferralCode, error) {
	var code models.ReferralCode
	if err := query.First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}
