package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/payment/stripe"
	"github.com/melodiemoment/api/internal/repository"
)

const (
	storyMinRunes = 50
	storyMaxRunes = 2000
	nameMaxRunes  = 120
	lyricsMaxRune = 5000

	orderNumberRandLen = 4
	orderNumberAlnum   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// CheckoutGateway creates hosted payment sessions.
type CheckoutGateway interface {
	CheckoutEnabled() bool
	CreateCheckoutSession(ctx context.Context, input stripe.CheckoutInput) (*stripe.Session, error)
}

// CreateOrderInput order form submission
type CreateOrderInput struct {
	PricingInput
	RecipientName string
	Occasion      string
	Relationship  string
	Story         string
	Genre         string
	Mood          int
	CustomerName  string
	CustomerEmail string
	Captcha       CaptchaVerifyPayload
}

// CreateOrderResult what the form needs to redirect to checkout
type CreateOrderResult struct {
	OrderNumber string `json:"orderNumber"`
	CheckoutURL string `json:"checkoutUrl"`
	Total       int    `json:"total"`
}

// PricePreview total and breakdown of a draft
type PricePreview struct {
	Total     int        `json:"total"`
	Breakdown []LineItem `json:"breakdown"`
}

// OrderService order intake and order views.
type OrderService struct {
	orderRepo repository.OrderRepository
	checkout  CheckoutGateway
	captcha   *CaptchaService
	now       func() time.Time
}

// NewOrderService creates the order service.
func NewOrderService(orderRepo repository.OrderRepository, checkout CheckoutGateway, captcha *CaptchaService) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		checkout:  checkout,
		captcha:   captcha,
		now:       storeNow,
	}
}

// Preview prices a draft without storing anything.
func (s *OrderService) Preview(input PricingInput) (*PricePreview, error) {
	if err := ValidatePricingInput(input); err != nil {
		return nil, err
	}
	breakdown := OrderBreakdown(input)
	return &PricePreview{Total: CalculateTotal(input), Breakdown: breakdown}, nil
}

// Create stores a pending order with its price snapshot and opens a
// checkout session for it.
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	input = normalizeCreateOrderInput(input)
	if err := validateCreateOrderInput(input); err != nil {
		return nil, err
	}
	if err := s.captcha.Verify(input.Captcha); err != nil {
		return nil, err
	}
	if s.checkout == nil || !s.checkout.CheckoutEnabled() {
		return nil, fmt.Errorf("%w: checkout disabled", ErrPaymentCreateFailed)
	}

	breakdown := OrderBreakdown(input.PricingInput)
	total := CalculateTotal(input.PricingInput)
	orderNumber, err := GenerateOrderNumber(s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}
	now := s.now()
	order := &models.Order{
		OrderNumber:     orderNumber,
		PackageType:     input.PackageType,
		SelectedBundle:  input.SelectedBundle,
		BumpKaraoke:     input.BumpKaraoke,
		BumpRush:        input.BumpRush,
		BumpGift:        input.BumpGift,
		HasCustomLyrics: input.HasCustomLyrics,
		CustomLyrics:    input.CustomLyrics,
		BasePrice:       PackagePrice(input.PackageType),
		TotalPrice:      total,
		RecipientName:   input.RecipientName,
		Occasion:        input.Occasion,
		Relationship:    input.Relationship,
		Story:           input.Story,
		Genre:           input.Genre,
		Mood:            input.Mood,
		CustomerName:    input.CustomerName,
		CustomerEmail:   input.CustomerEmail,
		Status:          constants.OrderStatusPending,
		PriorityReasons: models.StringArray{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}
	log := logger.FromContext(ctx).With("order_number", order.OrderNumber)

	items := make([]stripe.LineItem, 0, len(breakdown))
	for _, item := range breakdown {
		items = append(items, stripe.LineItem{Name: item.Label, Amount: item.Price})
	}
	session, err := s.checkout.CreateCheckoutSession(ctx, stripe.CheckoutInput{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PackageType:   order.PackageType,
		CustomerEmail: order.CustomerEmail,
		Items:         items,
	})
	if err != nil {
		log.Errorw("checkout_session_create_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentCreateFailed, err)
	}
	if err := s.orderRepo.UpdateSessionID(order.ID, session.ID); err != nil {
		// the payment webhook for this session will be skipped
		log.Errorw("order_session_bind_failed", "stripe_session_id", session.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	log.Infow("order_created", "total", total, "package_type", order.PackageType, "stripe_session_id", session.ID)
	return &CreateOrderResult{
		OrderNumber: order.OrderNumber,
		CheckoutURL: session.URL,
		Total:       total,
	}, nil
}

func normalizeCreateOrderInput(input CreateOrderInput) CreateOrderInput {
	input.PackageType = strings.ToLower(strings.TrimSpace(input.PackageType))
	input.SelectedBundle = strings.ToLower(strings.TrimSpace(input.SelectedBundle))
	if input.SelectedBundle == "" {
		input.SelectedBundle = constants.BundleNone
	}
	if !input.HasCustomLyrics {
		input.CustomLyrics = ""
	}
	input.CustomLyrics = strings.TrimSpace(input.CustomLyrics)
	input.RecipientName = strings.TrimSpace(input.RecipientName)
	input.Occasion = strings.ToLower(strings.TrimSpace(input.Occasion))
	input.Relationship = strings.TrimSpace(input.Relationship)
	input.Story = strings.TrimSpace(input.Story)
	input.Genre = strings.ToLower(strings.TrimSpace(input.Genre))
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerEmail = strings.ToLower(strings.TrimSpace(input.CustomerEmail))
	return input
}

func validateCreateOrderInput(input CreateOrderInput) error {
	if err := ValidatePricingInput(input.PricingInput); err != nil {
		return err
	}
	if !IsValidOccasion(input.Occasion) {
		return fmt.Errorf("%w: %q", ErrOccasionInvalid, input.Occasion)
	}
	if input.RecipientName == "" || utf8.RuneCountInString(input.RecipientName) > nameMaxRunes {
		return fmt.Errorf("%w: recipientName", ErrInvalidInput)
	}
	if input.CustomerName == "" || utf8.RuneCountInString(input.CustomerName) > nameMaxRunes {
		return fmt.Errorf("%w: customerName", ErrInvalidInput)
	}
	storyLen := utf8.RuneCountInString(input.Story)
	if storyLen < storyMinRunes || storyLen > storyMaxRunes {
		return fmt.Errorf("%w: story must have %d-%d characters", ErrInvalidInput, storyMinRunes, storyMaxRunes)
	}
	if input.Mood < 1 || input.Mood > 5 {
		return fmt.Errorf("%w: mood must be 1-5", ErrInvalidInput)
	}
	if utf8.RuneCountInString(input.CustomLyrics) > lyricsMaxRune {
		return fmt.Errorf("%w: customLyrics too long", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(input.CustomerEmail)
	if err != nil || addr.Address != input.CustomerEmail {
		return fmt.Errorf("%w: customerEmail", ErrInvalidInput)
	}
	return nil
}

// GenerateOrderNumber returns MM-<base36 ms>-<4 random>.
func GenerateOrderNumber(at time.Time) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(orderNumberAlnum)))
	for i := 0; i < orderNumberRandLen; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(orderNumberAlnum[n.Int64()])
	}
	stamp := strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36))
	return fmt.Sprintf("%s-%s-%s", constants.OrderNumberPrefix, stamp, b.String()), nil
}

// IsTestOrderNumber reports whether orderNumber belongs to a seeded fixture.
func IsTestOrderNumber(orderNumber string) bool {
	return strings.HasPrefix(orderNumber, constants.OrderNumberPrefix+"-"+constants.TestOrderNumberPart+"-")
}
