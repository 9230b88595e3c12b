package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/provider"
	"github.com/melodiemoment/api/internal/queue"
	"github.com/melodiemoment/api/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderPaidEmail, c.handleOrderPaidEmail)
	mux.HandleFunc(queue.TaskOrderDeliveryEmail, c.handleOrderDeliveryEmail)
	mux.HandleFunc(queue.TaskCampaignStep, c.handleCampaignStep)
}

func (c *Consumer) handleOrderPaidEmail(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_paid_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderPaidEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_paid_email_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	orderID := strings.TrimSpace(payload.OrderID)
	if orderID == "" {
		logger.Debugw("worker_order_paid_email_skip_invalid_payload")
		return nil
	}
	if c.OrderEmailService == nil {
		logger.Warnw("worker_order_paid_email_skip_service_nil", "order_id", orderID)
		return nil
	}
	err := c.OrderEmailService.SendConfirmation(ctx, orderID)
	return c.finishMail("worker_order_paid_email", orderID, err)
}

func (c *Consumer) handleOrderDeliveryEmail(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_delivery_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderDeliveryEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_delivery_email_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	orderID := strings.TrimSpace(payload.OrderID)
	if orderID == "" {
		logger.Debugw("worker_order_delivery_email_skip_invalid_payload")
		return nil
	}
	if c.OrderEmailService == nil {
		logger.Warnw("worker_order_delivery_email_skip_service_nil", "order_id", orderID)
		return nil
	}
	err := c.OrderEmailService.SendDelivery(ctx, orderID, strings.TrimSpace(payload.ReferralCode))
	return c.finishMail("worker_order_delivery_email", orderID, err)
}

// finishMail 决定失败的邮件是否重试：订单不存在、邮件未启用、收件人被拒绝时不再重试
func (c *Consumer) finishMail(event, orderID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrOrderNotFound):
		logger.Debugw(event+"_skip_order_not_found", "order_id", orderID)
		return nil
	case errors.Is(err, notify.ErrDisabled):
		logger.Debugw(event+"_skip_disabled", "order_id", orderID)
		return nil
	case errors.Is(err, notify.ErrRecipientDenied), errors.Is(err, notify.ErrInvalidEmail), errors.Is(err, service.ErrOrderStatusInvalid):
		logger.Warnw(event+"_dropped", "order_id", orderID, "error", err)
		c.Metrics.IncSideEffectFailure(strings.TrimPrefix(event, "worker_"))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		logger.Warnw(event+"_send_failed", "order_id", orderID, "error", err)
		return err
	}
}

func (c *Consumer) handleCampaignStep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_campaign_step_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CampaignStepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_campaign_step_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.EmailSendID == 0 {
		logger.Debugw("worker_campaign_step_skip_invalid_payload")
		return nil
	}
	if c.CampaignService == nil {
		logger.Warnw("worker_campaign_step_skip_service_nil", "email_send_id", payload.EmailSendID)
		return nil
	}
	err := c.CampaignService.SendStep(ctx, payload.EmailSendID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrCampaignNotFound), errors.Is(err, service.ErrCampaignHasNoSteps):
		logger.Debugw("worker_campaign_step_skip_stale", "email_send_id", payload.EmailSendID, "error", err)
		return nil
	case errors.Is(err, notify.ErrDisabled), errors.Is(err, notify.ErrRecipientDenied):
		logger.Warnw("worker_campaign_step_dropped", "email_send_id", payload.EmailSendID, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		logger.Warnw("worker_campaign_step_failed", "email_send_id", payload.EmailSendID, "error", err)
		return err
	}
}
