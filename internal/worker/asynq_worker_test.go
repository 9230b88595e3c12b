package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/metrics"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/provider"
	"github.com/melodiemoment/api/internal/queue"
	"github.com/melodiemoment/api/internal/repository"
	"github.com/melodiemoment/api/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []string
	delivered []string
	campaign  []string
	sendErr   error
}

func (n *recordingNotifier) EmailEnabled() bool { return true }

func (n *recordingNotifier) SendOrderConfirmation(_ context.Context, email notify.ConfirmationEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.confirmed = append(n.confirmed, email.OrderNumber)
	return nil
}

func (n *recordingNotifier) SendDelivery(_ context.Context, email notify.DeliveryEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, email.OrderNumber+"|"+email.ReferralCode)
	return nil
}

func (n *recordingNotifier) SendCampaignEmail(_ context.Context, to, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.campaign = append(n.campaign, to+"|"+subject)
	return nil
}

func (n *recordingNotifier) NotifyOps(context.Context, string) error { return nil }

func newTestConsumer(t *testing.T, notifier notify.Notifier) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: models.Now})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	orderRepo := repository.NewOrderRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	referrals := service.NewReferralService(repository.NewReferralRepository(db), config.SiteConfig{BaseURL: "https://melodiemoment.de", ReferralPath: "/r"})
	c := &provider.Container{
		Config:    &config.Config{},
		DB:        db,
		Metrics:   metrics.NewShopMetrics(prometheus.NewRegistry()),
		Notifier:  notifier,
		OrderRepo: orderRepo,
	}
	c.ReferralService = referrals
	c.OrderEmailService = service.NewOrderEmailService(orderRepo, referrals, notifier, nil)
	c.CampaignService = service.NewCampaignService(campaignRepo, orderRepo, notifier, nil)
	c.PriorityService = service.NewPriorityService(orderRepo, nil, c.Metrics)
	return NewConsumer(c), db
}

func createWorkerOrder(t *testing.T, db *gorm.DB, number string, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   number,
		PackageType:   constants.PackageBasis,
		BasePrice:     constants.PriceBasis,
		TotalPrice:    constants.PriceBasis,
		RecipientName: "Paul",
		Occasion:      constants.OccasionJubilaeum,
		Story:         "Paul und Anna feiern ihren vierzigsten Hochzeitstag im Garten mit der ganzen Familie.",
		Mood:          3,
		CustomerName:  "Anna",
		CustomerEmail: "anna@example.com",
		Status:        constants.OrderStatusPaid,
	}
	if mutate != nil {
		mutate(order)
	}
	if err := repository.NewOrderRepository(db).Create(order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func newTask(t *testing.T, taskType string, payload interface{}) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	return asynq.NewTask(taskType, body)
}

func TestHandleOrderPaidEmail(t *testing.T) {
	notifier := &recordingNotifier{}
	consumer, db := newTestConsumer(t, notifier)
	order := createWorkerOrder(t, db, "MM-TEST-W1", nil)

	if err := consumer.handleOrderPaidEmail(context.Background(), newTask(t, queue.TaskOrderPaidEmail, queue.OrderPaidEmailPayload{OrderID: order.ID})); err != nil {
		t.Fatalf("handle paid email failed: %v", err)
	}
	if len(notifier.confirmed) != 1 || notifier.confirmed[0] != "MM-TEST-W1" {
		t.Fatalf("unexpected confirmations: %v", notifier.confirmed)
	}
	if err := consumer.handleOrderPaidEmail(context.Background(), newTask(t, queue.TaskOrderPaidEmail, queue.OrderPaidEmailPayload{OrderID: "unknown"})); err != nil {
		t.Fatalf("missing order should be skipped, got %v", err)
	}
	if err := consumer.handleOrderPaidEmail(context.Background(), asynq.NewTask(queue.TaskOrderPaidEmail, []byte("{"))); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("broken payload should skip retry, got %v", err)
	}
}

func TestHandleOrderPaidEmailRetryPolicy(t *testing.T) {
	notifier := &recordingNotifier{sendErr: fmt.Errorf("resend: %w", notify.ErrRecipientDenied)}
	consumer, db := newTestConsumer(t, notifier)
	order := createWorkerOrder(t, db, "MM-TEST-W2", nil)
	task := newTask(t, queue.TaskOrderPaidEmail, queue.OrderPaidEmailPayload{OrderID: order.ID})

	if err := consumer.handleOrderPaidEmail(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("rejected recipient should skip retry, got %v", err)
	}
	notifier.sendErr = fmt.Errorf("%w: status=503", notify.ErrRequestFailed)
	err := consumer.handleOrderPaidEmail(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("transient failure should be retried, got %v", err)
	}
}

func TestHandleOrderDeliveryEmail(t *testing.T) {
	notifier := &recordingNotifier{}
	consumer, db := newTestConsumer(t, notifier)
	url := "https://melodiemoment.de/song/MM-TEST-W3"
	delivered := createWorkerOrder(t, db, "MM-TEST-W3", func(o *models.Order) {
		o.Status = constants.OrderStatusDelivered
		o.DeliveryURL = &url
	})
	pending := createWorkerOrder(t, db, "MM-TEST-W4", nil)

	task := newTask(t, queue.TaskOrderDeliveryEmail, queue.OrderDeliveryEmailPayload{OrderID: delivered.ID, ReferralCode: "MELODIEABC234"})
	if err := consumer.handleOrderDeliveryEmail(context.Background(), task); err != nil {
		t.Fatalf("handle delivery email failed: %v", err)
	}
	if len(notifier.delivered) != 1 || notifier.delivered[0] != "MM-TEST-W3|MELODIEABC234" {
		t.Fatalf("unexpected deliveries: %v", notifier.delivered)
	}
	noURL := newTask(t, queue.TaskOrderDeliveryEmail, queue.OrderDeliveryEmailPayload{OrderID: pending.ID})
	if err := consumer.handleOrderDeliveryEmail(context.Background(), noURL); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("order without delivery url should skip retry, got %v", err)
	}
}

func TestHandleCampaignStep(t *testing.T) {
	notifier := &recordingNotifier{}
	consumer, db := newTestConsumer(t, notifier)
	order := createWorkerOrder(t, db, "MM-TEST-W5", nil)
	campaign, err := consumer.CampaignService.Create(service.CreateCampaignInput{
		Name:     "Nachfass",
		Trigger:  constants.CampaignTriggerPaid,
		IsActive: true,
		Steps:    []service.CreateCampaignStepInput{{Subject: "Hallo {{customer_name}}", Body: "Danke!", DelayDays: 1}},
	})
	if err != nil {
		t.Fatalf("create campaign failed: %v", err)
	}
	enrollment, err := consumer.CampaignService.Enroll(context.Background(), campaign.ID, order.ID)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if len(notifier.campaign) != 0 {
		t.Fatalf("future step must not be sent on enroll")
	}
	sends, err := repository.NewCampaignRepository(db).ListEmailSends(enrollment.ID)
	if err != nil || len(sends) != 1 {
		t.Fatalf("expected 1 scheduled send, got %d %v", len(sends), err)
	}

	task := newTask(t, queue.TaskCampaignStep, queue.CampaignStepPayload{EmailSendID: sends[0].ID})
	if err := consumer.handleCampaignStep(context.Background(), task); err != nil {
		t.Fatalf("handle campaign step failed: %v", err)
	}
	if len(notifier.campaign) != 1 || notifier.campaign[0] != "anna@example.com|Hallo Anna" {
		t.Fatalf("unexpected campaign mails: %v", notifier.campaign)
	}
	if err := consumer.handleCampaignStep(context.Background(), task); err != nil || len(notifier.campaign) != 1 {
		t.Fatalf("redelivered task must be a no-op: %v %v", err, notifier.campaign)
	}
	if err := consumer.handleCampaignStep(context.Background(), newTask(t, queue.TaskCampaignStep, queue.CampaignStepPayload{})); err != nil {
		t.Fatalf("empty payload should be skipped, got %v", err)
	}
}

func TestNewServiceNeedsWork(t *testing.T) {
	consumer, _ := newTestConsumer(t, &recordingNotifier{})
	if _, err := NewService(&config.Config{}, consumer); err == nil {
		t.Fatalf("expected error without queue and ticker")
	}
	cfg := &config.Config{Priority: config.PriorityConfig{AutoIntervalMinutes: 15}}
	svc, err := NewService(cfg, consumer)
	if err != nil {
		t.Fatalf("ticker only worker should start: %v", err)
	}
	if svc.interval != 15*time.Minute || svc.server != nil {
		t.Fatalf("unexpected worker: %+v", svc)
	}
}

func TestPrioritizeOnceTriagesOpenOrders(t *testing.T) {
	consumer, db := newTestConsumer(t, &recordingNotifier{})
	order := createWorkerOrder(t, db, "MM-TEST-W6", func(o *models.Order) { o.BumpRush = true })
	svc := &Service{consumer: consumer, interval: time.Minute}

	svc.prioritizeOnce(context.Background())

	stored, err := repository.NewOrderRepository(db).GetByID(order.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.PriorityValue() != constants.PriorityHigh {
		t.Fatalf("rush order should be high, got %q", stored.PriorityValue())
	}
	if len(stored.PriorityReasons) != 1 || !strings.Contains(stored.PriorityReasons[0], "Rush") {
		t.Fatalf("unexpected rush reasons: %v", stored.PriorityReasons)
	}
	if stored.SuggestedDeadline == nil || !stored.SuggestedDeadline.After(time.Now()) {
		t.Fatalf("rush order needs a future deadline, got %v", stored.SuggestedDeadline)
	}
}
