package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/repository"
)

// OrderStatusView customer safe order status
type OrderStatusView struct {
	OrderNumber   string     `json:"orderNumber"`
	Status        string     `json:"status"`
	RecipientName string     `json:"recipientName"`
	Occasion      string     `json:"occasion"`
	DeliveryURL   *string    `json:"deliveryUrl,omitempty"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// AdminOrderDetail order with its deliverables and price breakdown
type AdminOrderDetail struct {
	Order     *models.Order `json:"order"`
	Breakdown []LineItem    `json:"breakdown"`
}

// GetStatus returns the public status of orderNumber.
func (s *OrderService) GetStatus(orderNumber string) (*OrderStatusView, error) {
	order, err := s.loadByNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	return statusView(order), nil
}

// GetStatusBySession returns the public status for the checkout return page.
func (s *OrderService) GetStatusBySession(sessionID string) (*OrderStatusView, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return statusView(order), nil
}

func statusView(order *models.Order) *OrderStatusView {
	view := &OrderStatusView{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		RecipientName: order.RecipientName,
		Occasion:      order.Occasion,
		CreatedAt:     order.CreatedAt,
	}
	if order.Status == constants.OrderStatusDelivered {
		view.DeliveryURL = order.DeliveryURL
		view.DeliveredAt = order.DeliveredAt
	}
	return view
}

// ListOrdersForAdmin lists orders newest first.
func (s *OrderService) ListOrdersForAdmin(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.Status != "" && !IsAllowedOrderStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: %q", ErrStatusInvalid, filter.Status)
	}
	if filter.Priority != "" && !isPriority(filter.Priority) {
		return nil, 0, fmt.Errorf("%w: priority %q", ErrInvalidInput, filter.Priority)
	}
	orders, total, err := s.orderRepo.ListAdmin(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	return orders, total, nil
}

// GetOrderForAdmin returns one order with breakdown.
func (s *OrderService) GetOrderForAdmin(orderNumber string) (*AdminOrderDetail, error) {
	order, err := s.loadByNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	return &AdminOrderDetail{
		Order: order,
		Breakdown: OrderBreakdown(PricingInput{
			PackageType:     order.PackageType,
			SelectedBundle:  order.SelectedBundle,
			BumpKaraoke:     order.BumpKaraoke,
			BumpRush:        order.BumpRush,
			BumpGift:        order.BumpGift,
			HasCustomLyrics: order.HasCustomLyrics,
			CustomLyrics:    order.CustomLyrics,
		}),
	}, nil
}

func (s *OrderService) loadByNumber(orderNumber string) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByOrderNumber(orderNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}
