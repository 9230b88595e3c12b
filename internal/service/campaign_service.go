package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/queue"
	"github.com/melodiemoment/api/internal/repository"
)

// CreateCampaignInput admin campaign definition
type CreateCampaignInput struct {
	Name        string
	Description string
	Trigger     string
	IsActive    bool
	Steps       []CreateCampaignStepInput
}

// CreateCampaignStepInput one step and its template
type CreateCampaignStepInput struct {
	Subject    string
	Body       string
	DelayDays  int
	DelayHours int
}

// CampaignService runs drip campaigns.
type CampaignService struct {
	repo      repository.CampaignRepository
	orderRepo repository.OrderRepository
	notifier  notify.Notifier
	queue     *queue.Client
	now       func() time.Time
}

// NewCampaignService creates the campaign service.
func NewCampaignService(repo repository.CampaignRepository, orderRepo repository.OrderRepository, notifier notify.Notifier, queueClient *queue.Client) *CampaignService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &CampaignService{
		repo:      repo,
		orderRepo: orderRepo,
		notifier:  notifier,
		queue:     queueClient,
		now:       storeNow,
	}
}

func (s *CampaignService) List() ([]models.DripCampaign, error) {
	return s.repo.List()
}

// Create stores a campaign with one template per step.
func (s *CampaignService) Create(input CreateCampaignInput) (*models.DripCampaign, error) {
	name := strings.TrimSpace(input.Name)
	trigger := strings.TrimSpace(input.Trigger)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if trigger != constants.CampaignTriggerPaid && trigger != constants.CampaignTriggerDelivered {
		return nil, fmt.Errorf("%w: trigger %q", ErrInvalidInput, trigger)
	}
	if len(input.Steps) == 0 {
		return nil, ErrCampaignHasNoSteps
	}
	campaign := &models.DripCampaign{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Trigger:     trigger,
		IsActive:    input.IsActive,
	}
	templates := make([]models.EmailTemplate, 0, len(input.Steps))
	for i, step := range input.Steps {
		subject := strings.TrimSpace(step.Subject)
		if subject == "" || strings.TrimSpace(step.Body) == "" {
			return nil, fmt.Errorf("%w: step %d needs subject and body", ErrInvalidInput, i+1)
		}
		if step.DelayDays < 0 || step.DelayHours < 0 {
			return nil, fmt.Errorf("%w: step %d delay negative", ErrInvalidInput, i+1)
		}
		templates = append(templates, models.EmailTemplate{
			Name:    fmt.Sprintf("%s #%d", name, i+1),
			Subject: subject,
			Body:    step.Body,
		})
		campaign.Steps = append(campaign.Steps, models.CampaignStep{
			StepOrder:  i + 1,
			DelayDays:  step.DelayDays,
			DelayHours: step.DelayHours,
		})
	}
	if err := s.repo.CreateWithSteps(campaign, templates); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Enroll starts campaignID for orderID and schedules the first step.
func (s *CampaignService) Enroll(ctx context.Context, campaignID uint, orderID string) (*models.CampaignEnrollment, error) {
	campaign, err := s.repo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return s.enroll(ctx, campaign, orderID)
}

// EnrollByTrigger enrolls orderID into the active campaign for trigger.
// It returns nil when no campaign is active.
func (s *CampaignService) EnrollByTrigger(ctx context.Context, trigger, orderID string) (*models.CampaignEnrollment, error) {
	campaign, err := s.repo.GetActiveByTrigger(trigger)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, nil
	}
	return s.enroll(ctx, campaign, orderID)
}

// enrollOnTrigger is EnrollByTrigger for automatic enrollment, where an
// existing enrollment is not an error.
func (s *CampaignService) enrollOnTrigger(ctx context.Context, trigger, orderID string) error {
	_, err := s.EnrollByTrigger(ctx, trigger, orderID)
	if errors.Is(err, ErrAlreadyEnrolled) {
		return nil
	}
	return err
}

func (s *CampaignService) enroll(ctx context.Context, campaign *models.DripCampaign, orderID string) (*models.CampaignEnrollment, error) {
	if !campaign.IsActive {
		return nil, ErrCampaignInactive
	}
	if len(campaign.Steps) == 0 {
		return nil, ErrCampaignHasNoSteps
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	existing, err := s.repo.FindEnrollment(campaign.ID, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyEnrolled
	}

	enrollment := &models.CampaignEnrollment{
		CampaignID: campaign.ID,
		OrderID:    order.ID,
		Email:      order.CustomerEmail,
		EnrolledAt: s.now(),
		Status:     constants.EnrollmentStatusActive,
	}
	if err := s.repo.CreateEnrollment(enrollment); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("campaign_enrolled",
		"campaign_id", campaign.ID,
		"order_number", order.OrderNumber,
		"enrollment_id", enrollment.ID,
	)
	if err := s.scheduleStep(ctx, enrollment, campaign.Steps[0]); err != nil {
		return enrollment, err
	}
	return enrollment, nil
}

// scheduleStep records the send and hands it to the queue. Without a queue
// a due step is sent inline and a future one stays scheduled.
func (s *CampaignService) scheduleStep(ctx context.Context, enrollment *models.CampaignEnrollment, step models.CampaignStep) error {
	send := &models.EmailSend{
		EnrollmentID: enrollment.ID,
		StepID:       step.ID,
		ScheduledAt:  enrollment.EnrolledAt.Add(step.Delay()),
		Status:       constants.EmailSendStatusScheduled,
	}
	if err := s.repo.CreateEmailSend(send); err != nil {
		return err
	}
	if s.queue.Enabled() {
		return s.queue.EnqueueCampaignStep(queue.CampaignStepPayload{EmailSendID: send.ID}, send.ScheduledAt)
	}
	if !send.ScheduledAt.After(s.now()) {
		return s.SendStep(ctx, send.ID)
	}
	logger.FromContext(ctx).Warnw("campaign_step_unscheduled", "email_send_id", send.ID, "reason", "queue_disabled")
	return nil
}

// SendStep renders and sends one scheduled campaign email, then schedules
// the next step relative to enrollment.
func (s *CampaignService) SendStep(ctx context.Context, emailSendID uint) error {
	send, err := s.repo.GetEmailSend(emailSendID)
	if err != nil {
		return err
	}
	if send == nil || send.Status == constants.EmailSendStatusSent {
		return nil
	}
	enrollment, err := s.repo.GetEnrollment(send.EnrollmentID)
	if err != nil {
		return err
	}
	if enrollment == nil || enrollment.Status != constants.EnrollmentStatusActive {
		return nil
	}
	campaign, err := s.repo.GetByID(enrollment.CampaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}
	index := -1
	for i := range campaign.Steps {
		if campaign.Steps[i].ID == send.StepID {
			index = i
			break
		}
	}
	if index < 0 || campaign.Steps[index].Template == nil {
		return fmt.Errorf("%w: step %d", ErrCampaignHasNoSteps, send.StepID)
	}
	step := campaign.Steps[index]
	order, err := s.orderRepo.GetByID(enrollment.OrderID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return ErrOrderNotFound
	}

	vars := templateVars(order)
	subject := RenderTemplate(step.Template.Subject, vars)
	body := RenderTemplate(step.Template.Body, vars)
	if err := s.notifier.SendCampaignEmail(ctx, enrollment.Email, subject, body); err != nil {
		if updateErr := s.repo.UpdateEmailSend(send.ID, map[string]interface{}{
			"status": constants.EmailSendStatusFailed,
			"error":  err.Error(),
		}); updateErr != nil {
			logger.FromContext(ctx).Warnw("campaign_send_failure_not_recorded", "email_send_id", send.ID, "send_error", err, "error", updateErr)
		}
		return err
	}
	sentAt := s.now()
	if err := s.repo.UpdateEmailSend(send.ID, map[string]interface{}{
		"status":  constants.EmailSendStatusSent,
		"sent_at": sentAt,
		"error":   "",
	}); err != nil {
		return err
	}

	updates := map[string]interface{}{"current_step": index + 1}
	if index+1 >= len(campaign.Steps) {
		updates["status"] = constants.EnrollmentStatusCompleted
	}
	if err := s.repo.UpdateEnrollment(enrollment.ID, updates); err != nil {
		return err
	}
	logger.FromContext(ctx).Infow("campaign_step_sent",
		"enrollment_id", enrollment.ID,
		"step", step.StepOrder,
		"order_number", order.OrderNumber,
	)
	if index+1 < len(campaign.Steps) {
		return s.scheduleStep(ctx, enrollment, campaign.Steps[index+1])
	}
	return nil
}

func templateVars(order *models.Order) map[string]string {
	deliveryURL := ""
	if order.DeliveryURL != nil {
		deliveryURL = *order.DeliveryURL
	}
	return map[string]string{
		"customer_name":  order.CustomerName,
		"recipient_name": order.RecipientName,
		"order_number":   order.OrderNumber,
		"occasion":       occasionLabel(order.Occasion),
		"delivery_url":   deliveryURL,
	}
}

// RenderTemplate replaces {{name}} placeholders. Unknown placeholders stay.
func RenderTemplate(text string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*4)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value, "{{ "+key+" }}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
