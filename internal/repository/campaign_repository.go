package repository

import (
	"errors"

	"github.com/melodiemoment/api/internal/models"

	"gorm.io/gorm"
)

// CampaignRepository drip campaign data access
type CampaignRepository interface {
	List() ([]models.DripCampaign, error)
	GetByID(id uint) (*models.DripCampaign, error)
	GetActiveByTrigger(trigger string) (*models.DripCampaign, error)
	CreateWithSteps(campaign *models.DripCampaign, templates []models.EmailTemplate) error
	GetEnrollment(id uint) (*models.CampaignEnrollment, error)
	FindEnrollment(campaignID uint, orderID string) (*models.CampaignEnrollment, error)
	CreateEnrollment(enrollment *models.CampaignEnrollment) error
	UpdateEnrollment(id uint, updates map[string]interface{}) error
	CreateEmailSend(send *models.EmailSend) error
	GetEmailSend(id uint) (*models.EmailSend, error)
	UpdateEmailSend(id uint, updates map[string]interface{}) error
	ListEmailSends(enrollmentID uint) ([]models.EmailSend, error)
}

// GormCampaignRepository GORM implementation
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a campaign repository.
func NewCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

func (r *GormCampaignRepository) withSteps(query *gorm.DB) *gorm.DB {
	return query.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_order asc")
	}).Preload("Steps.Template")
}

// List lists every campaign with its steps.
func (r *GormCampaignRepository) List() ([]models.DripCampaign, error) {
	var campaigns []models.DripCampaign
	if err := r.withSteps(r.db).Order("id asc").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *GormCampaignRepository) GetByID(id uint) (*models.DripCampaign, error) {
	return r.firstCampaign(r.db.Where("id = ?", id))
}

// GetActiveByTrigger returns the oldest active campaign for trigger.
func (r *GormCampaignRepository) GetActiveByTrigger(trigger string) (*models.DripCampaign, error) {
	return r.firstCampaign(r.db.Where("trigger_event = ? AND is_active = ?", trigger, true).Order("id asc"))
}

func (r *GormCampaignRepository) firstCampaign(query *gorm.DB) (*models.DripCampaign, error) {
	var campaign models.DripCampaign
	if err := r.withSteps(query).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// CreateWithSteps creates the templates, the campaign and its steps in one
// transaction. templates[i] belongs to campaign.Steps[i].
func (r *GormCampaignRepository) CreateWithSteps(campaign *models.DripCampaign, templates []models.EmailTemplate) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		steps := campaign.Steps
		campaign.Steps = nil
		if err := tx.Create(campaign).Error; err != nil {
			return err
		}
		for i := range steps {
			if i < len(templates) {
				template := templates[i]
				if err := tx.Create(&template).Error; err != nil {
					return err
				}
				steps[i].TemplateID = template.ID
				steps[i].Template = &template
			}
			steps[i].CampaignID = campaign.ID
			if err := tx.Omit("Template").Create(&steps[i]).Error; err != nil {
				return err
			}
		}
		campaign.Steps = steps
		return nil
	})
}

func (r *GormCampaignRepository) GetEnrollment(id uint) (*models.CampaignEnrollment, error) {
	var enrollment models.CampaignEnrollment
	if err := r.db.First(&enrollment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &enrollment, nil
}

func (r *GormCampaignRepository) FindEnrollment(campaignID uint, orderID string) (*models.CampaignEnrollment, error) {
	var enrollment models.CampaignEnrollment
	if err := r.db.Where("campaign_id = ? AND order_id = ?", campaignID, orderID).First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &enrollment, nil
}

func (r *GormCampaignRepository) CreateEnrollment(enrollment *models.CampaignEnrollment) error {
	return r.db.Create(enrollment).Error
}

func (r *GormCampaignRepository) UpdateEnrollment(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.CampaignEnrollment{}).Where("id = ?", id).Updates(updates).Error
}

func (r *GormCampaignRepository) CreateEmailSend(send *models.EmailSend) error {
	return r.db.Create(send).Error
}

func (r *GormCampaignRepository) GetEmailSend(id uint) (*models.EmailSend, error) {
	var send models.EmailSend
	if err := r.db.First(&send, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &send, nil
}

func (r *GormCampaignRepository) UpdateEmailSend(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.EmailSend{}).Where("id = ?", id).Updates(updates).Error
}

// ListEmailSends lists sends of an enrollment in schedule order.
func (r *GormCampaignRepository) ListEmailSends(enrollmentID uint) ([]models.EmailSend, error) {
	var sends []models.EmailSend
	if err := r.db.Where("enrollment_id = ?", enrollmentID).Order("scheduled_at asc").Find(&sends).Error; err != nil {
		return nil, err
	}
	return sends, nil
}
