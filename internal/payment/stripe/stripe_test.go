package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func checkoutCompletedBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   "evt_test_1",
		"type": EventCheckoutCompleted,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":           "checkout.session",
				"id":               "cs_test_123",
				"payment_intent":   "pi_test_9",
				"payment_status":   "paid",
				"currency":         "eur",
				"amount_total":     11300,
				"customer_details": map[string]interface{}{"email": "kunde@example.com"},
				"metadata": map[string]interface{}{
					"order_id":     "0b7c",
					"order_number": "MM-LX1-ABCD",
					"package_type": "plus",
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal event failed: %v", err)
	}
	return body
}

func TestVerifyWebhookCheckoutCompleted(t *testing.T) {
	now := time.Unix(1760000000, 0)
	client := NewClient(Config{WebhookSecret: "whsec_test_abc"})
	body := checkoutCompletedBody(t)

	event, err := client.VerifyWebhook(SignatureHeader("whsec_test_abc", now, body), body, now)
	if err != nil {
		t.Fatalf("verify webhook failed: %v", err)
	}
	if event.Type != EventCheckoutCompleted || event.SessionID != "cs_test_123" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.PaymentIntentID != "pi_test_9" || event.OrderNumber != "MM-LX1-ABCD" || event.PackageType != "plus" {
		t.Fatalf("unexpected metadata: %+v", event)
	}
	if event.Amount != "113.00" || event.Currency != "EUR" {
		t.Fatalf("unexpected amount: %s %s", event.Amount, event.Currency)
	}
	if event.CustomerEmail != "kunde@example.com" {
		t.Fatalf("unexpected email: %s", event.CustomerEmail)
	}
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	now := time.Unix(1760000000, 0)
	client := NewClient(Config{WebhookSecret: "whsec_test_abc"})
	body := checkoutCompletedBody(t)

	if _, err := client.VerifyWebhook("t=1760000000,v1=deadbeef", body, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if _, err := client.VerifyWebhook("garbage", body, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected malformed header error, got %v", err)
	}
	stale := SignatureHeader("whsec_test_abc", now.Add(-time.Hour), body)
	if _, err := client.VerifyWebhook(stale, body, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected tolerance error, got %v", err)
	}
}

func TestVerifyWebhookWithoutSecretFailsClosed(t *testing.T) {
	now := time.Unix(1760000000, 0)
	client := NewClient(Config{})
	body := checkoutCompletedBody(t)
	if _, err := client.VerifyWebhook(SignatureHeader("", now, body), body, now); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestCreateCheckoutSessionSendsMetadata(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(raw))
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		SecretKey:  "sk_test_1",
		SuccessURL: "https://melodiemoment.de/danke?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://melodiemoment.de/bestellen",
		APIBaseURL: server.URL,
	})
	session, err := client.CreateCheckoutSession(context.Background(), CheckoutInput{
		OrderID:     "0b7c",
		OrderNumber: "MM-LX1-ABCD",
		PackageType: "plus",
		Items: []LineItem{
			{Name: "Melodie Plus", Amount: 79},
			{Name: "+Karaoke", Amount: 19},
		},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if session.ID != "cs_test_1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if form.Get("line_items[0][price_data][unit_amount]") != "7900" || form.Get("line_items[1][price_data][unit_amount]") != "1900" {
		t.Fatalf("unexpected amounts: %v", form)
	}
	if form.Get("metadata[order_number]") != "MM-LX1-ABCD" || form.Get("metadata[order_id]") != "0b7c" {
		t.Fatalf("metadata missing: %v", form)
	}
	if form.Get("line_items[0][price_data][currency]") != "eur" {
		t.Fatalf("unexpected currency: %s", form.Get("line_items[0][price_data][currency]"))
	}
}

func TestCreateCheckoutSessionRequiresSecret(t *testing.T) {
	client := NewClient(Config{SuccessURL: "https://a.de", CancelURL: "https://a.de"})
	if client.CheckoutEnabled() {
		t.Fatalf("client without key should be disabled")
	}
	_, err := client.CreateCheckoutSession(context.Background(), CheckoutInput{OrderID: "1", OrderNumber: "MM-1", Items: []LineItem{{Name: "x", Amount: 1}}})
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config error, got %v", err)
	}
}
