package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/queue"
	"github.com/melodiemoment/api/internal/repository"
)

// OrderEmailService sends the customer mails of an order, either through
// the task queue or inline when the queue is disabled.
type OrderEmailService struct {
	orderRepo repository.OrderRepository
	referrals *ReferralService
	notifier  notify.Notifier
	queue     *queue.Client
}

// NewOrderEmailService creates the order mail service.
func NewOrderEmailService(orderRepo repository.OrderRepository, referrals *ReferralService, notifier notify.Notifier, queueClient *queue.Client) *OrderEmailService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &OrderEmailService{
		orderRepo: orderRepo,
		referrals: referrals,
		notifier:  notifier,
		queue:     queueClient,
	}
}

// EmailEnabled reports whether customer mails can be sent at all.
func (s *OrderEmailService) EmailEnabled() bool {
	return s.notifier.EmailEnabled()
}

// DispatchConfirmation queues the payment confirmation, or sends it inline.
func (s *OrderEmailService) DispatchConfirmation(ctx context.Context, orderID string) error {
	if !s.notifier.EmailEnabled() {
		return notify.ErrDisabled
	}
	if s.queue.Enabled() {
		return s.queue.EnqueueOrderPaidEmail(queue.OrderPaidEmailPayload{OrderID: orderID})
	}
	return s.SendConfirmation(ctx, orderID)
}

// DispatchDelivery queues the delivery mail, or sends it inline.
func (s *OrderEmailService) DispatchDelivery(ctx context.Context, orderID, referralCode string) error {
	if !s.notifier.EmailEnabled() {
		return notify.ErrDisabled
	}
	if s.queue.Enabled() {
		return s.queue.EnqueueOrderDeliveryEmail(queue.OrderDeliveryEmailPayload{OrderID: orderID, ReferralCode: referralCode})
	}
	return s.SendDelivery(ctx, orderID, referralCode)
}

// SendConfirmation renders and sends the payment confirmation now.
func (s *OrderEmailService) SendConfirmation(ctx context.Context, orderID string) error {
	order, err := s.load(orderID)
	if err != nil {
		return err
	}
	if err := s.notifier.SendOrderConfirmation(ctx, notify.ConfirmationEmail{
		To:            order.CustomerEmail,
		CustomerName:  order.CustomerName,
		RecipientName: order.RecipientName,
		OrderNumber:   order.OrderNumber,
		PackageLabel:  orderPackageLabel(order),
		Total:         order.TotalPrice,
		Rush:          order.BumpRush,
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	return nil
}

// SendDelivery renders and sends the delivery mail now. The order must
// already carry its delivery URL.
func (s *OrderEmailService) SendDelivery(ctx context.Context, orderID, referralCode string) error {
	order, err := s.load(orderID)
	if err != nil {
		return err
	}
	if order.DeliveryURL == nil || strings.TrimSpace(*order.DeliveryURL) == "" {
		return fmt.Errorf("%w: delivery url missing", ErrOrderStatusInvalid)
	}
	email := notify.DeliveryEmail{
		To:            order.CustomerEmail,
		CustomerName:  order.CustomerName,
		RecipientName: order.RecipientName,
		OrderNumber:   order.OrderNumber,
		DeliveryURL:   *order.DeliveryURL,
	}
	if referralCode != "" && s.referrals != nil {
		email.ReferralCode = referralCode
		email.ReferralURL = s.referrals.URL(referralCode)
	}
	if err := s.notifier.SendDelivery(ctx, email); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	logger.FromContext(ctx).Infow("delivery_email_sent", "order_number", order.OrderNumber)
	return nil
}

func (s *OrderEmailService) load(orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func orderPackageLabel(order *models.Order) string {
	items := OrderBreakdown(PricingInput{
		PackageType:    order.PackageType,
		SelectedBundle: order.SelectedBundle,
	})
	labels := make([]string, 0, len(items))
	for _, item := range items {
		labels = append(labels, item.Label)
	}
	if len(labels) == 0 {
		return PackageLabel(order.PackageType)
	}
	return strings.Join(labels, " + ")
}
