package repository

import (
	"errors"

	"github.com/melodiemoment/api/internal/models"

	"gorm.io/gorm"
)

// DeliverableRepository deliverable data access
type DeliverableRepository interface {
	Create(deliverable *models.Deliverable) error
	GetByID(id string) (*models.Deliverable, error)
	ListByOrder(orderID string) ([]models.Deliverable, error)
	Delete(id string) error
}

// GormDeliverableRepository GORM implementation
type GormDeliverableRepository struct {
	db *gorm.DB
}

// NewDeliverableRepository creates a deliverable repository.
func NewDeliverableRepository(db *gorm.DB) *GormDeliverableRepository {
	return &GormDeliverableRepository{db: db}
}

func (r *GormDeliverableRepository) Create(deliverable *models.Deliverable) error {
	return r.db.Create(deliverable).Error
}

func (r *GormDeliverableRepository) GetByID(id string) (*models.Deliverable, error) {
	var deliverable models.Deliverable
	if err := r.db.Where("id = ?", id).First(&deliverable).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deliverable, nil
}

// ListByOrder lists an order's deliverables, oldest first.
func (r *GormDeliverableRepository) ListByOrder(orderID string) ([]models.Deliverable, error) {
	var deliverables []models.Deliverable
	if err := r.db.Where("order_id = ?", orderID).Order("created_at asc").Find(&deliverables).Error; err != nil {
		return nil, err
	}
	return deliverables, nil
}

// Delete removes the row physically.
func (r *GormDeliverableRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Deliverable{}).Error
}
