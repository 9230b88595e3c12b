package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/genai"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type serviceTestEnv struct {
	db           *gorm.DB
	orders       *repository.GormOrderRepository
	deliverables *repository.GormDeliverableRepository
	campaigns    *repository.GormCampaignRepository
	referrals    *repository.GormReferralRepository
}

func newServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: models.Now})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// batch tests write from several goroutines
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return &serviceTestEnv{
		db:           db,
		orders:       repository.NewOrderRepository(db),
		deliverables: repository.NewDeliverableRepository(db),
		campaigns:    repository.NewCampaignRepository(db),
		referrals:    repository.NewReferralRepository(db),
	}
}

func (e *serviceTestEnv) createOrder(t *testing.T, number, status string, mutate func(*models.Order)) *models.Order {
	t.Helper()
	now := models.Now()
	order := &models.Order{
		OrderNumber:     number,
		PackageType:     constants.PackagePlus,
		SelectedBundle:  constants.BundleNone,
		BasePrice:       constants.PricePlus,
		TotalPrice:      constants.PricePlus,
		RecipientName:   "Lena",
		Occasion:        constants.OccasionGeburtstag,
		Relationship:    "Schwester",
		Story:           "Lena und ich sind zusammen am Bodensee aufgewachsen und haben jeden Sommer im Boot verbracht.",
		Genre:           "pop",
		Mood:            4,
		CustomerName:    "Jonas",
		CustomerEmail:   "jonas@example.com",
		StripeSessionID: "cs_" + number,
		Status:          status,
		PriorityReasons: models.StringArray{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if mutate != nil {
		mutate(order)
	}
	if err := e.orders.Create(order); err != nil {
		t.Fatalf("create order %s failed: %v", number, err)
	}
	return order
}

func (e *serviceTestEnv) addDeliverable(t *testing.T, order *models.Order, deliverableType string) *models.Deliverable {
	t.Helper()
	d := &models.Deliverable{
		OrderID:    order.ID,
		Type:       deliverableType,
		FileURL:    "https://files.example.com/" + order.OrderNumber + "/" + deliverableType,
		FileName:   "datei." + deliverableType,
		StorageKey: order.OrderNumber + "/" + deliverableType,
	}
	if err := e.deliverables.Create(d); err != nil {
		t.Fatalf("create deliverable failed: %v", err)
	}
	return d
}

func (e *serviceTestEnv) reload(t *testing.T, id string) *models.Order {
	t.Helper()
	order, err := e.orders.GetByID(id)
	if err != nil || order == nil {
		t.Fatalf("reload order %s failed: %v", id, err)
	}
	return order
}

type fakeNotifier struct {
	mu            sync.Mutex
	disabled      bool
	deliveryErr   error
	campaignErr   error
	confirmations []notify.ConfirmationEmail
	deliveries    []notify.DeliveryEmail
	campaignMails []string
	ops           []string
}

func (n *fakeNotifier) EmailEnabled() bool {
	return !n.disabled
}

func (n *fakeNotifier) SendOrderConfirmation(_ context.Context, email notify.ConfirmationEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, email)
	return nil
}

func (n *fakeNotifier) SendDelivery(_ context.Context, email notify.DeliveryEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.deliveryErr != nil {
		return n.deliveryErr
	}
	n.deliveries = append(n.deliveries, email)
	return nil
}

func (n *fakeNotifier) SendCampaignEmail(_ context.Context, to, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.campaignErr != nil {
		return n.campaignErr
	}
	n.campaignMails = append(n.campaignMails, to+"|"+subject)
	return nil
}

func (n *fakeNotifier) NotifyOps(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ops = append(n.ops, text)
	return nil
}

func (n *fakeNotifier) counts() (confirmations, deliveries, ops int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.confirmations), len(n.deliveries), len(n.ops)
}

type stubClassifier struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (c *stubClassifier) GenerateText(_ context.Context, _ string, _ genai.TextOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.reply, c.err
}

func (c *stubClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type memoryObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removeErr error
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}}
}

func (s *memoryObjectStore) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "https://files.example.com/" + key, nil
}

func (s *memoryObjectStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memoryObjectStore) Name() string {
	return "memory"
}

func (s *memoryObjectStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type stubGenerator struct {
	disabled bool
	text     string
	textErr  error
	image    []byte
	imageErr error
}

func (g *stubGenerator) Enabled() bool {
	return !g.disabled
}

func (g *stubGenerator) GenerateText(_ context.Context, _ string, _ genai.TextOptions) (string, error) {
	return g.text, g.textErr
}

func (g *stubGenerator) GenerateImage(_ context.Context, _ string) (*genai.Image, error) {
	if g.imageErr != nil {
		return nil, g.imageErr
	}
	if g.image == nil {
		return nil, errors.New("no image")
	}
	return &genai.Image{Data: bytes.Clone(g.image), MimeType: "image/png", Model: "stub"}, nil
}
