package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/metrics"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/repository"

	"golang.org/x/sync/errgroup"
)

const defaultBatchConcurrency = 4

// DeliveryResult outcome of a single delivery
type DeliveryResult struct {
	DeliveryURL string `json:"deliveryUrl"`
	EmailSent   bool   `json:"emailSent"`
}

// BatchInput admin batch request
type BatchInput struct {
	Action   string
	OrderIDs []string
	Status   string
}

// BatchItem one processed order
type BatchItem struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	Error       string `json:"error,omitempty"`
}

// BatchResult aggregate batch outcome
type BatchResult struct {
	Action       string      `json:"action"`
	Total        int         `json:"total"`
	SuccessCount int         `json:"successCount"`
	FailedCount  int         `json:"failedCount"`
	Success      []BatchItem `json:"success"`
	Failed       []BatchItem `json:"failed"`
}

// FulfillmentService takes paid orders to delivered.
type FulfillmentService struct {
	orderRepo   repository.OrderRepository
	state       *OrderStateService
	referrals   *ReferralService
	emails      *OrderEmailService
	campaigns   *CampaignService
	notifier    notify.Notifier
	site        config.SiteConfig
	metrics     *metrics.ShopMetrics
	concurrency int
	now         func() time.Time
}

// FulfillmentOptions collaborators of the fulfillment service
type FulfillmentOptions struct {
	OrderRepo   repository.OrderRepository
	State       *OrderStateService
	Referrals   *ReferralService
	Emails      *OrderEmailService
	Campaigns   *CampaignService
	Notifier    notify.Notifier
	Site        config.SiteConfig
	Metrics     *metrics.ShopMetrics
	Concurrency int
}

// NewFulfillmentService creates the fulfillment orchestrator.
func NewFulfillmentService(opts FulfillmentOptions) *FulfillmentService {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &FulfillmentService{
		orderRepo:   opts.OrderRepo,
		state:       opts.State,
		referrals:   opts.Referrals,
		emails:      opts.Emails,
		campaigns:   opts.Campaigns,
		notifier:    notifier,
		site:        opts.Site,
		metrics:     opts.Metrics,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// DeliveryURL returns the public song page of an order.
func (s *FulfillmentService) DeliveryURL(orderNumber string) string {
	return s.site.BaseURL + s.site.DeliveryPath + "/" + orderNumber
}

// DeliverOrder delivers one order by number.
func (s *FulfillmentService) DeliverOrder(ctx context.Context, orderNumber string) (*DeliveryResult, error) {
	order, err := s.orderRepo.GetByOrderNumber(strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.deliver(ctx, order)
}

// deliver validates preconditions before any side effect, writes the status
// and then runs the non-blocking side effects.
func (s *FulfillmentService) deliver(ctx context.Context, order *models.Order) (*DeliveryResult, error) {
	if err := CheckDeliverable(order); err != nil {
		return nil, err
	}
	if order.Status == constants.OrderStatusRefunded {
		return nil, fmt.Errorf("%w: %s", ErrOrderStatusInvalid, order.Status)
	}
	log := logger.FromContext(ctx).With("order_number", order.OrderNumber)
	deliveryURL := s.DeliveryURL(order.OrderNumber)

	var referralCode string
	if s.referrals != nil {
		runBestEffort(ctx, s.metrics, "referral_code", func(context.Context) error {
			code, err := s.referrals.GetOrCreate(order.CustomerEmail, order.ID)
			if err != nil {
				return err
			}
			referralCode = code.Code
			return nil
		})
	}

	if _, err := s.state.MarkDelivered(order.ID, deliveryURL, s.now()); err != nil {
		return nil, err
	}
	log.Infow("order_delivered", "delivery_url", deliveryURL)

	emailSent := false
	if s.emails != nil {
		emailSent = runBestEffort(ctx, s.metrics, "delivery_email", func(ctx context.Context) error {
			return s.emails.DispatchDelivery(ctx, order.ID, referralCode)
		})
	}
	runBestEffort(ctx, s.metrics, "ops_delivered", func(ctx context.Context) error {
		return s.notifier.NotifyOps(ctx, fmt.Sprintf("Bestellung %s ausgeliefert an %s (E-Mail: %t)", order.OrderNumber, order.CustomerEmail, emailSent))
	})
	if s.campaigns != nil {
		runBestEffort(ctx, s.metrics, "campaign_enroll", func(ctx context.Context) error {
			return s.campaigns.enrollOnTrigger(ctx, constants.CampaignTriggerDelivered, order.ID)
		})
	}
	return &DeliveryResult{DeliveryURL: deliveryURL, EmailSent: emailSent}, nil
}

// RunBatch applies action to every order independently. Every requested id
// ends up in exactly one of Success or Failed.
func (s *FulfillmentService) RunBatch(ctx context.Context, input BatchInput) (*BatchResult, error) {
	action := strings.TrimSpace(input.Action)
	switch action {
	case constants.BatchActionDeliverAll, constants.BatchActionSetInProduction:
	case constants.BatchActionUpdateStatus:
		if !IsAllowedOrderStatus(input.Status) {
			return nil, fmt.Errorf("%w: %q", ErrStatusInvalid, input.Status)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrBatchActionInvalid, input.Action)
	}
	ids := normalizeIDs(input.OrderIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: orderIds required", ErrInvalidInput)
	}
	orders, err := s.orderRepo.ListByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	byID := make(map[string]*models.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}

	result := &BatchResult{
		Action:  action,
		Total:   len(ids),
		Success: []BatchItem{},
		Failed:  []BatchItem{},
	}
	var mu sync.Mutex
	record := func(item BatchItem, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			item.Error = batchErrorText(err)
			result.Failed = append(result.Failed, item)
			return
		}
		result.Success = append(result.Success, item)
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		order, ok := byID[id]
		if !ok {
			record(BatchItem{ID: id}, ErrOrderNotFound)
			continue
		}
		g.Go(func() error {
			record(BatchItem{ID: order.ID, OrderNumber: order.OrderNumber}, s.applyBatchAction(ctx, action, order, input.Status))
			return nil
		})
	}
	_ = g.Wait()

	result.SuccessCount = len(result.Success)
	result.FailedCount = len(result.Failed)
	s.metrics.AddBatchItems(action, result.SuccessCount, result.FailedCount)
	logger.FromContext(ctx).Infow("order_batch_finished",
		"action", action,
		"total", result.Total,
		"success", result.SuccessCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

func (s *FulfillmentService) applyBatchAction(ctx context.Context, action string, order *models.Order, status string) error {
	switch action {
	case constants.BatchActionDeliverAll:
		if order.Status == constants.OrderStatusDelivered {
			return ErrOrderAlreadyDelivered
		}
		_, err := s.deliver(ctx, order)
		return err
	case constants.BatchActionSetInProduction:
		_, err := s.state.SetInProduction(order.ID)
		return err
	case constants.BatchActionUpdateStatus:
		_, err := s.state.OverrideStatus(order.OrderNumber, OverrideInput{Status: &status})
		return err
	}
	return ErrBatchActionInvalid
}

func batchErrorText(err error) string {
	if msg, ok := UserMessage(err); ok {
		return msg
	}
	return err.Error()
}
