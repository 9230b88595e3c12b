package models

import "time"

// DripCampaign is a sequence of emails started by an order event.
type DripCampaign struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"type:varchar(120);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Trigger     string    `gorm:"column:trigger_event;type:varchar(20);index;not null" json:"trigger"`
	IsActive    bool      `gorm:"index;not null" json:"isActive"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Steps []CampaignStep `gorm:"foreignKey:CampaignID" json:"steps,omitempty"`
}

// TableName table name
func (DripCampaign) TableName() string {
	return "drip_campaigns"
}

// CampaignStep is one scheduled email of a campaign, offset from enrollment.
type CampaignStep struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CampaignID uint      `gorm:"uniqueIndex:idx_campaign_step_order;not null" json:"campaignId"`
	StepOrder  int       `gorm:"uniqueIndex:idx_campaign_step_order;not null" json:"stepOrder"`
	TemplateID uint      `gorm:"index;not null" json:"templateId"`
	DelayDays  int       `gorm:"not null;default:0" json:"delayDays"`
	DelayHours int       `gorm:"not null;default:0" json:"delayHours"`
	CreatedAt  time.Time `json:"createdAt"`

	Template *EmailTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
}

// TableName table name
func (CampaignStep) TableName() string {
	return "campaign_steps"
}

// Delay returns the step offset from enrollment.
func (s CampaignStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// EmailTemplate subject and body with {{placeholder}} variables.
type EmailTemplate struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"type:varchar(120);not null" json:"name"`
	Subject   string    `gorm:"type:varchar(255);not null" json:"subject"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName table name
func (EmailTemplate) TableName() string {
	return "email_templates"
}

// CampaignEnrollment ties an order to a campaign.
type CampaignEnrollment struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CampaignID  uint      `gorm:"uniqueIndex:idx_enrollment_campaign_order;not null" json:"campaignId"`
	OrderID     string    `gorm:"uniqueIndex:idx_enrollment_campaign_order;type:varchar(36);not null" json:"orderId"`
	Email       string    `gorm:"type:varchar(255);not null" json:"email"`
	EnrolledAt  time.Time `gorm:"not null" json:"enrolledAt"`
	CurrentStep int       `gorm:"not null;default:0" json:"currentStep"`
	Status      string    `gorm:"type:varchar(20);index;not null" json:"status"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName table name
func (CampaignEnrollment) TableName() string {
	return "campaign_enrollments"
}

// EmailSend records one scheduled or sent campaign email.
type EmailSend struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	EnrollmentID uint       `gorm:"index;not null" json:"enrollmentId"`
	StepID       uint       `gorm:"index;not null" json:"stepId"`
	ScheduledAt  time.Time  `gorm:"index;not null" json:"scheduledAt"`
	SentAt       *time.Time `json:"sentAt"`
	Status       string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TableName table name
func (EmailSend) TableName() string {
	return "email_sends"
}
