package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/metrics"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/payment/stripe"
)

// WebhookVerifier authenticates and decodes a provider event.
type WebhookVerifier interface {
	VerifyWebhook(signatureHeader string, body []byte, now time.Time) (*stripe.Event, error)
}

// EventGuard remembers processed event ids.
type EventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// WebhookOutcome what happened to one delivered event
type WebhookOutcome struct {
	EventID      string
	EventType    string
	Duplicate    bool
	Ignored      bool
	Transitioned bool
}

// WebhookService turns verified payment events into order transitions.
type WebhookService struct {
	verifier  WebhookVerifier
	guard     EventGuard
	state     *OrderStateService
	emails    *OrderEmailService
	campaigns *CampaignService
	notifier  notify.Notifier
	metrics   *metrics.ShopMetrics
	now       func() time.Time
}

// WebhookOptions collaborators of the webhook service
type WebhookOptions struct {
	Verifier  WebhookVerifier
	Guard     EventGuard
	State     *OrderStateService
	Emails    *OrderEmailService
	Campaigns *CampaignService
	Notifier  notify.Notifier
	Metrics   *metrics.ShopMetrics
}

// NewWebhookService creates the webhook dispatcher. Guard may be nil, the
// status gated transitions still keep replays harmless.
func NewWebhookService(opts WebhookOptions) *WebhookService {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &WebhookService{
		verifier:  opts.Verifier,
		guard:     opts.Guard,
		state:     opts.State,
		emails:    opts.Emails,
		campaigns: opts.Campaigns,
		notifier:  notifier,
		metrics:   opts.Metrics,
		now:       time.Now,
	}
}

// Handle verifies body against signatureHeader and applies the event.
func (s *WebhookService) Handle(ctx context.Context, signatureHeader string, body []byte) (*WebhookOutcome, error) {
	log := logger.FromContext(ctx)
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: verifier missing", ErrWebhookSignature)
	}
	event, err := s.verifier.VerifyWebhook(signatureHeader, body, s.now())
	if err != nil {
		log.Warnw("stripe_webhook_rejected", "error", err)
		s.metrics.IncWebhookEvent("", "rejected")
		if errors.Is(err, stripe.ErrSignatureInvalid) || errors.Is(err, stripe.ErrConfigInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrWebhookPayload, err)
	}
	outcome := &WebhookOutcome{EventID: event.ID, EventType: event.Type}
	log = log.With("event_id", event.ID, "event_type", event.Type)

	if s.guard != nil {
		duplicate, guardErr := s.guard.CheckAndMark(ctx, event.ID)
		switch {
		case guardErr != nil:
			log.Warnw("stripe_webhook_guard_failed", "error", guardErr)
		case duplicate:
			log.Infow("stripe_webhook_duplicate")
			s.metrics.IncWebhookEvent(event.Type, "duplicate")
			outcome.Duplicate = true
			return outcome, nil
		}
	}

	if err := s.dispatch(ctx, event, outcome); err != nil {
		if s.guard != nil {
			if releaseErr := s.guard.Release(ctx, event.ID); releaseErr != nil {
				log.Warnw("stripe_webhook_guard_release_failed", "error", releaseErr)
			}
		}
		log.Errorw("stripe_webhook_failed", "error", err)
		s.metrics.IncWebhookEvent(event.Type, "error")
		return nil, err
	}
	result := "processed"
	if outcome.Ignored {
		result = "ignored"
	}
	s.metrics.IncWebhookEvent(event.Type, result)
	return outcome, nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *stripe.Event, outcome *WebhookOutcome) error {
	switch event.Type {
	case stripe.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event, outcome)
	case stripe.EventChargeRefunded:
		return s.handleChargeRefunded(ctx, event, outcome)
	default:
		outcome.Ignored = true
		return nil
	}
}

func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event *stripe.Event, outcome *WebhookOutcome) error {
	sessionID := strings.TrimSpace(event.SessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id missing", ErrWebhookPayload)
	}
	// async payment methods complete the session before the money arrives
	if status := event.PaymentStatus; status != "" && status != "paid" && status != "no_payment_required" {
		logger.FromContext(ctx).Infow("stripe_checkout_unpaid", "payment_status", status, "stripe_session_id", sessionID)
		outcome.Ignored = true
		return nil
	}
	result, err := s.state.MarkPaid(sessionID, event.PaymentIntentID)
	if err != nil {
		return err
	}
	if !result.Transitioned {
		return nil
	}
	outcome.Transitioned = true
	s.afterPaid(ctx, result.Order)
	return nil
}

// afterPaid runs the post payment side effects. None of them can undo the
// transition.
func (s *WebhookService) afterPaid(ctx context.Context, order *models.Order) {
	if s.emails != nil {
		runBestEffort(ctx, s.metrics, "confirmation_email", func(ctx context.Context) error {
			return s.emails.DispatchConfirmation(ctx, order.ID)
		})
	}
	runBestEffort(ctx, s.metrics, "ops_paid", func(ctx context.Context) error {
		return s.notifier.NotifyOps(ctx, fmt.Sprintf("Neue Bestellung %s: %s für %s (%d €)",
			order.OrderNumber, PackageLabel(order.PackageType), order.RecipientName, order.TotalPrice))
	})
	if s.campaigns != nil {
		runBestEffort(ctx, s.metrics, "campaign_enroll", func(ctx context.Context) error {
			return s.campaigns.enrollOnTrigger(ctx, constants.CampaignTriggerPaid, order.ID)
		})
	}
}

func (s *WebhookService) handleChargeRefunded(ctx context.Context, event *stripe.Event, outcome *WebhookOutcome) error {
	intent := strings.TrimSpace(event.PaymentIntentID)
	if intent == "" {
		return fmt.Errorf("%w: payment intent missing", ErrWebhookPayload)
	}
	result, err := s.state.RefundByPaymentIntent(intent)
	if err != nil {
		return err
	}
	if !result.Transitioned {
		return nil
	}
	outcome.Transitioned = true
	runBestEffort(ctx, s.metrics, "ops_refunded", func(ctx context.Context) error {
		return s.notifier.NotifyOps(ctx, fmt.Sprintf("Bestellung %s erstattet", result.Order.OrderNumber))
	})
	return nil
}
