package queue

import (
	"encoding/json"

	"github.com/melodiemoment/api/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	TaskOrderPaidEmail     = constants.TaskOrderPaidEmail
	TaskOrderDeliveryEmail = constants.TaskOrderDeliveryEmail
	TaskCampaignStep       = constants.TaskCampaignStep
)

// OrderPaidEmailPayload confirmation mail after payment
type OrderPaidEmailPayload struct {
	OrderID string `json:"order_id"`
}

// OrderDeliveryEmailPayload resend of the delivery mail
type OrderDeliveryEmailPayload struct {
	OrderID      string `json:"order_id"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// CampaignStepPayload one scheduled drip email
type CampaignStepPayload struct {
	EmailSendID uint `json:"email_send_id"`
}

func NewOrderPaidEmailTask(payload OrderPaidEmailPayload) (*asynq.Task, error) {
	return newTask(TaskOrderPaidEmail, payload)
}

func NewOrderDeliveryEmailTask(payload OrderDeliveryEmailPayload) (*asynq.Task, error) {
	return newTask(TaskOrderDeliveryEmail, payload)
}

func NewCampaignStepTask(payload CampaignStepPayload) (*asynq.Task, error) {
	return newTask(TaskCampaignStep, payload)
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
