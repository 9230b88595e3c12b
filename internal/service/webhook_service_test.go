package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/payment/stripe"
)

const testWebhookSecret = "whsec_service_test"

type memoryEventGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *memoryEventGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[eventID] {
		return true, nil
	}
	g.seen[eventID] = true
	return false, nil
}

func (g *memoryEventGuard) Release(_ context.Context, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, eventID)
	return nil
}

func signedEvent(t *testing.T, eventID, eventType string, object map[string]interface{}) (string, []byte) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal event failed: %v", err)
	}
	return stripe.SignatureHeader(testWebhookSecret, time.Now(), body), body
}

func newWebhookForTest(env *serviceTestEnv, notifier *fakeNotifier, guard EventGuard) *WebhookService {
	return NewWebhookService(WebhookOptions{
		Verifier:  stripe.NewClient(stripe.Config{WebhookSecret: testWebhookSecret}),
		Guard:     guard,
		State:     NewOrderStateService(env.orders),
		Emails:    NewOrderEmailService(env.orders, nil, notifier, nil),
		Campaigns: NewCampaignService(env.campaigns, env.orders, notifier, nil),
		Notifier:  notifier,
	})
}

func checkoutObject(order *models.Order) map[string]interface{} {
	return map[string]interface{}{
		"object":         "checkout.session",
		"id":             order.StripeSessionID,
		"payment_intent": "pi_" + order.OrderNumber,
		"payment_status": "paid",
		"currency":       "eur",
		"amount_total":   order.TotalPrice * 100,
		"metadata": map[string]interface{}{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"package_type": order.PackageType,
		},
	}
}

func TestWebhookCheckoutCompletedMarksPaidOnce(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.createOrder(t, "MM-TEST-WH1", constants.OrderStatusPending, nil)
	notifier := &fakeNotifier{}
	svc := newWebhookForTest(env, notifier, nil)
	header, body := signedEvent(t, "evt_1", stripe.EventCheckoutCompleted, checkoutObject(order))

	outcome, err := svc.Handle(context.Background(), header, body)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !outcome.Transitioned {
		t.Fatalf("expected transition: %+v", outcome)
	}
	paid := env.reload(t, order.ID)
	if paid.Status != constants.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}

	// replay without a guard: the status gate alone keeps it harmless
	outcome, err = svc.Handle(context.Background(), header, body)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if outcome.Transitioned {
		t.Fatalf("replay must not transition again")
	}
	if !env.reload(t, order.ID).UpdatedAt.Equal(paid.UpdatedAt) {
		t.Fatalf("replay changed updatedAt")
	}
	confirmations, _, ops := notifier.counts()
	if confirmations != 1 || ops != 1 {
		t.Fatalf("side effects must run once, got confirmations=%d ops=%d", confirmations, ops)
	}
}

func TestWebhookGuardShortCircuitsReplay(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.createOrder(t, "MM-TEST-WH2", constants.OrderStatusPending, nil)
	notifier := &fakeNotifier{}
	svc := newWebhookForTest(env, notifier, &memoryEventGuard{})
	header, body := signedEvent(t, "evt_2", stripe.EventCheckoutCompleted, checkoutObject(order))

	if _, err := svc.Handle(context.Background(), header, body); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	outcome, err := svc.Handle(context.Background(), header, body)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !outcome.Duplicate {
		t.Fatalf("expected duplicate outcome: %+v", outcome)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.createOrder(t, "MM-TEST-WH3", constants.OrderStatusPending, nil)
	svc := newWebhookForTest(env, &fakeNotifier{}, nil)
	_, body := signedEvent(t, "evt_3", stripe.EventCheckoutCompleted, checkoutObject(order))

	if _, err := svc.Handle(context.Background(), "t=1,v1=00", body); !errors.Is(err, ErrWebhookSignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if env.reload(t, order.ID).Status != constants.OrderStatusPending {
		t.Fatalf("unverified event must not change the order")
	}
}

func TestWebhookWithoutMatchingOrderIsAccepted(t *testing.T) {
	env := newServiceTestEnv(t)
	notifier := &fakeNotifier{}
	svc := newWebhookForTest(env, notifier, nil)
	header, body := signedEvent(t, "evt_4", stripe.EventCheckoutCompleted, map[string]interface{}{
		"object":         "checkout.session",
		"id":             "cs_not_yet_stored",
		"payment_status": "paid",
	})
	outcome, err := svc.Handle(context.Background(), header, body)
	if err != nil {
		t.Fatalf("missing order must not fail the webhook: %v", err)
	}
	if outcome.Transitioned {
		t.Fatalf("nothing to transition")
	}
	if confirmations, _, _ := notifier.counts(); confirmations != 0 {
		t.Fatalf("no mail without an order")
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	env := newServiceTestEnv(t)
	svc := newWebhookForTest(env, &fakeNotifier{}, nil)
	header, body := signedEvent(t, "evt_5", "customer.created", map[string]interface{}{"object": "customer", "id": "cus_1"})
	outcome, err := svc.Handle(context.Background(), header, body)
	if err != nil || !outcome.Ignored {
		t.Fatalf("expected ignored outcome, got %+v %v", outcome, err)
	}
}

func TestWebhookChargeRefunded(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.createOrder(t, "MM-TEST-WH6", constants.OrderStatusPaid, func(o *models.Order) {
		intent := "pi_refund_me"
		o.StripePaymentIntentID = &intent
	})
	svc := newWebhookForTest(env, &fakeNotifier{}, nil)
	header, body := signedEvent(t, "evt_6", stripe.EventChargeRefunded, map[string]interface{}{
		"object":          "charge",
		"id":              "ch_1",
		"payment_intent":  "pi_refund_me",
		"currency":        "eur",
		"amount_refunded": 7900,
	})
	outcome, err := svc.Handle(context.Background(), header, body)
	if err != nil || !outcome.Transitioned {
		t.Fatalf("expected refund transition, got %+v %v", outcome, err)
	}
	if env.reload(t, order.ID).Status != constants.OrderStatusRefunded {
		t.Fatalf("expected refunded")
	}
}
