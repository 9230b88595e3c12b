package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/repository"
)

// AllowedOrderStatuses is the allow-list for manual status correction.
var AllowedOrderStatuses = []string{
	constants.OrderStatusPending,
	constants.OrderStatusPaid,
	constants.OrderStatusInProduction,
	constants.OrderStatusQualityReview,
	constants.OrderStatusDelivered,
	constants.OrderStatusRefunded,
}

// IsAllowedOrderStatus reports whether status is in the allow-list.
func IsAllowedOrderStatus(status string) bool {
	for _, allowed := range AllowedOrderStatuses {
		if status == allowed {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether no further work is expected.
func IsTerminalOrderStatus(status string) bool {
	return status == constants.OrderStatusDelivered || status == constants.OrderStatusRefunded
}

// OrderStateService owns every order status write.
type OrderStateService struct {
	orderRepo repository.OrderRepository
	now       func() time.Time
}

// NewOrderStateService creates the order state machine.
func NewOrderStateService(orderRepo repository.OrderRepository) *OrderStateService {
	return &OrderStateService{
		orderRepo: orderRepo,
		now:       storeNow,
	}
}

func storeNow() time.Time {
	return models.Now()
}

// TransitionResult outcome of a state machine call
type TransitionResult struct {
	Order        *models.Order
	Transitioned bool
	Skipped      bool
}

// MarkPaid moves the order bound to sessionID from pending to paid.
// A missing order is skipped, an order past pending is left untouched.
func (s *OrderStateService) MarkPaid(sessionID, paymentIntentID string) (*TransitionResult, error) {
	log := logger.SW("stripe_session_id", sessionID)
	order, err := s.orderRepo.GetBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		log.Warnw("order_mark_paid_skipped", "reason", "order_not_found")
		return &TransitionResult{Skipped: true}, nil
	}
	if order.Status != constants.OrderStatusPending {
		log.Infow("order_mark_paid_noop", "order_number", order.OrderNumber, "status", order.Status)
		return &TransitionResult{Order: order}, nil
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":     constants.OrderStatusPaid,
		"updated_at": now,
	}
	if intent := strings.TrimSpace(paymentIntentID); intent != "" {
		updates["stripe_payment_intent_id"] = intent
	}
	ok, err := s.orderRepo.UpdateGuarded(order.ID, repository.StatusGuard{Status: constants.OrderStatusPending}, updates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if !ok {
		// a concurrent delivery of the same event won the race
		log.Infow("order_mark_paid_noop", "order_number", order.OrderNumber, "reason", "concurrent_transition")
		return &TransitionResult{Order: order}, nil
	}

	order.Status = constants.OrderStatusPaid
	order.UpdatedAt = now
	if intent := strings.TrimSpace(paymentIntentID); intent != "" {
		order.StripePaymentIntentID = &intent
	}
	log.Infow("order_marked_paid", "order_number", order.OrderNumber)
	return &TransitionResult{Order: order, Transitioned: true}, nil
}

// SetInProduction moves a paid order to in_production.
func (s *OrderStateService) SetInProduction(orderID string) (*models.Order, error) {
	order, err := s.load(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusPaid {
		return nil, fmt.Errorf("%w: %s", ErrOrderStatusInvalid, order.Status)
	}
	if err := s.transition(order, constants.OrderStatusInProduction, nil); err != nil {
		return nil, err
	}
	return order, nil
}

// MarkDelivered marks the order delivered. It requires an mp3 deliverable
// and runs no side effects.
func (s *OrderStateService) MarkDelivered(orderID, deliveryURL string, deliveredAt time.Time) (*models.Order, error) {
	order, err := s.load(orderID)
	if err != nil {
		return nil, err
	}
	if err := CheckDeliverable(order); err != nil {
		return nil, err
	}
	if order.Status == constants.OrderStatusRefunded {
		return nil, fmt.Errorf("%w: %s", ErrOrderStatusInvalid, order.Status)
	}
	deliveredAt = deliveredAt.UTC().Truncate(time.Microsecond)
	if err := s.transition(order, constants.OrderStatusDelivered, map[string]interface{}{
		"delivery_url": deliveryURL,
		"delivered_at": deliveredAt,
	}); err != nil {
		return nil, err
	}
	order.DeliveryURL = &deliveryURL
	order.DeliveredAt = &deliveredAt
	return order, nil
}

// Refund moves any order to refunded. Refunding twice is a no-op.
func (s *OrderStateService) Refund(orderID string) (*TransitionResult, error) {
	order, err := s.load(orderID)
	if err != nil {
		return nil, err
	}
	return s.refund(order)
}

// RefundByPaymentIntent refunds the order captured by paymentIntentID.
func (s *OrderStateService) RefundByPaymentIntent(paymentIntentID string) (*TransitionResult, error) {
	order, err := s.orderRepo.GetByPaymentIntentID(paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		logger.Warnw("order_refund_skipped", "payment_intent_id", paymentIntentID, "reason", "order_not_found")
		return &TransitionResult{Skipped: true}, nil
	}
	return s.refund(order)
}

func (s *OrderStateService) refund(order *models.Order) (*TransitionResult, error) {
	if order.Status == constants.OrderStatusRefunded {
		return &TransitionResult{Order: order}, nil
	}
	from := order.Status
	if err := s.transition(order, constants.OrderStatusRefunded, nil); err != nil {
		return nil, err
	}
	logger.Infow("order_refunded", "order_number", order.OrderNumber, "from_status", from)
	return &TransitionResult{Order: order, Transitioned: true}, nil
}

// OverrideInput manual correction fields; nil fields are left unchanged.
type OverrideInput struct {
	Status      *string
	DeliveryURL *string
	DeliveredAt *time.Time
}

// OverrideStatus writes an allow-listed status without transition guards.
// Every call is logged as order_status_override.
func (s *OrderStateService) OverrideStatus(orderNumber string, input OverrideInput) (*models.Order, error) {
	if input.Status != nil && !IsAllowedOrderStatus(*input.Status) {
		return nil, fmt.Errorf("%w: %q", ErrStatusInvalid, *input.Status)
	}
	order, err := s.orderRepo.GetByOrderNumber(orderNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	now := s.now()
	updates := map[string]interface{}{"updated_at": now}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.DeliveryURL != nil {
		updates["delivery_url"] = *input.DeliveryURL
	}
	if input.DeliveredAt != nil {
		updates["delivered_at"] = input.DeliveredAt.UTC().Truncate(time.Microsecond)
	}
	ok, err := s.orderRepo.UpdateGuarded(order.ID, repository.StatusGuard{UpdatedAt: order.UpdatedAt}, updates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if !ok {
		return nil, ErrOrderConcurrentUpdate
	}

	oldStatus := order.Status
	if input.Status != nil {
		order.Status = *input.Status
	}
	if input.DeliveryURL != nil {
		order.DeliveryURL = input.DeliveryURL
	}
	if v, ok := updates["delivered_at"].(time.Time); ok {
		order.DeliveredAt = &v
	}
	order.UpdatedAt = now
	logger.Warnw("order_status_override",
		"order_number", order.OrderNumber,
		"old_status", oldStatus,
		"new_status", order.Status,
	)
	return order, nil
}

// CheckDeliverable returns ErrDeliverableMissing or ErrMP3Missing when the
// order cannot be delivered yet.
func CheckDeliverable(order *models.Order) error {
	if len(order.Deliverables) == 0 {
		return ErrDeliverableMissing
	}
	if PrimaryAudio(order.Deliverables) == nil {
		return ErrMP3Missing
	}
	return nil
}

// PrimaryAudio returns the first mp3 deliverable.
func PrimaryAudio(deliverables []models.Deliverable) *models.Deliverable {
	for i := range deliverables {
		if deliverables[i].Type == constants.DeliverableMP3 {
			return &deliverables[i]
		}
	}
	return nil
}

func (s *OrderStateService) load(orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// transition writes status guarded by the loaded status and updated_at.
func (s *OrderStateService) transition(order *models.Order, status string, extra map[string]interface{}) error {
	now := s.now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	for key, value := range extra {
		updates[key] = value
	}
	ok, err := s.orderRepo.UpdateGuarded(order.ID, repository.StatusGuard{
		Status:    order.Status,
		UpdatedAt: order.UpdatedAt,
	}, updates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if !ok {
		return ErrOrderConcurrentUpdate
	}
	order.Status = status
	order.UpdatedAt = now
	return nil
}
