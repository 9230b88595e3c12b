package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/genai"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/metrics"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/repository"
)

const (
	reasonCompleted   = "Bestellung bereits abgeschlossen"
	reasonRush        = "Express-Lieferung (Rush) gebucht"
	reasonUnavailable = "Automatische Analyse nicht verfügbar"

	autoPrioritizeLimit = 50
)

// activeTriageStatuses are the statuses the auto mode picks up.
var activeTriageStatuses = []string{
	constants.OrderStatusPaid,
	constants.OrderStatusInProduction,
	constants.OrderStatusQualityReview,
}

// Classifier produces the raw model answer for a triage prompt.
type Classifier interface {
	GenerateText(ctx context.Context, prompt string, opts genai.TextOptions) (string, error)
}

// PriorityAnalysis triage result for one order
type PriorityAnalysis struct {
	Priority          string   `json:"priority"`
	Reasons           []string `json:"reasons"`
	SuggestedDeadline *string  `json:"suggestedDeadline"`
	UrgentPhrases     []string `json:"urgentPhrases"`
}

// PriorityResult analysis bound to its order
type PriorityResult struct {
	OrderID     string           `json:"orderId"`
	OrderNumber string           `json:"orderNumber"`
	Analysis    PriorityAnalysis `json:"analysis"`
}

// PriorityService assigns fulfillment priority to open orders.
type PriorityService struct {
	orderRepo  repository.OrderRepository
	classifier Classifier
	metrics    *metrics.ShopMetrics
	now        func() time.Time
}

// NewPriorityService creates the triage engine. classifier may be nil, in
// which case every non-rush open order gets the default analysis.
func NewPriorityService(orderRepo repository.OrderRepository, classifier Classifier, m *metrics.ShopMetrics) *PriorityService {
	return &PriorityService{
		orderRepo:  orderRepo,
		classifier: classifier,
		metrics:    m,
		now:        storeNow,
	}
}

// AnalyzeOrders triages the given orders. Unknown ids are ignored.
func (s *PriorityService) AnalyzeOrders(ctx context.Context, orderIDs []string) ([]PriorityResult, error) {
	ids := normalizeIDs(orderIDs)
	if len(ids) == 0 {
		return []PriorityResult{}, nil
	}
	orders, err := s.orderRepo.ListByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	return s.analyzeAll(ctx, orders), nil
}

// AnalyzeUnprioritized triages active orders that have no priority yet.
func (s *PriorityService) AnalyzeUnprioritized(ctx context.Context) ([]PriorityResult, error) {
	orders, err := s.orderRepo.ListUnprioritized(activeTriageStatuses, autoPrioritizeLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	return s.analyzeAll(ctx, orders), nil
}

func (s *PriorityService) analyzeAll(ctx context.Context, orders []models.Order) []PriorityResult {
	results := make([]PriorityResult, 0, len(orders))
	for i := range orders {
		order := &orders[i]
		analysis := s.analyzeOrder(ctx, order)
		if err := s.persist(order, analysis); err != nil {
			logger.FromContext(ctx).Errorw("priority_persist_failed", "order_number", order.OrderNumber, "error", err)
			continue
		}
		results = append(results, PriorityResult{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Analysis:    analysis,
		})
	}
	return results
}

// analyzeOrder is the single decision path for both entry points.
func (s *PriorityService) analyzeOrder(ctx context.Context, order *models.Order) PriorityAnalysis {
	now := s.now()
	if IsTerminalOrderStatus(order.Status) {
		s.metrics.IncTriage(constants.PriorityLow, "terminal")
		return PriorityAnalysis{
			Priority:      constants.PriorityLow,
			Reasons:       []string{reasonCompleted},
			UrgentPhrases: []string{},
		}
	}
	if order.BumpRush {
		deadline := now.Add(constants.RushDeadlineHours * time.Hour).Format(time.RFC3339)
		s.metrics.IncTriage(constants.PriorityHigh, "rush")
		return PriorityAnalysis{
			Priority:          constants.PriorityHigh,
			Reasons:           []string{reasonRush},
			SuggestedDeadline: &deadline,
			UrgentPhrases:     []string{},
		}
	}

	ageHours := int(now.Sub(order.CreatedAt).Hours())
	if ageHours < 0 {
		ageHours = 0
	}
	analysis, source := s.classify(ctx, order, ageHours)
	analysis = applyAgeEscalation(analysis, ageHours)
	s.metrics.IncTriage(analysis.Priority, source)
	return analysis
}

func (s *PriorityService) classify(ctx context.Context, order *models.Order, ageHours int) (PriorityAnalysis, string) {
	fallback := PriorityAnalysis{
		Priority:      constants.PriorityNormal,
		Reasons:       []string{reasonUnavailable},
		UrgentPhrases: []string{},
	}
	if s.classifier == nil {
		return fallback, "fallback"
	}
	raw, err := s.classifier.GenerateText(ctx, BuildTriagePrompt(order, ageHours), genai.TextOptions{JSON: true})
	if err != nil {
		logger.FromContext(ctx).Warnw("priority_model_call_failed", "order_number", order.OrderNumber, "error", err)
		return fallback, "fallback"
	}
	accepted := false
	parsed := genai.ParseStructuredOutput(raw, fallback, func(a *PriorityAnalysis) bool {
		accepted = validPriorityAnalysis(a)
		return accepted
	})
	if !accepted {
		logger.FromContext(ctx).Warnw("priority_model_output_invalid", "order_number", order.OrderNumber)
		return fallback, "fallback"
	}
	return parsed, "model"
}

func validPriorityAnalysis(a *PriorityAnalysis) bool {
	a.Priority = strings.ToLower(strings.TrimSpace(a.Priority))
	if !isPriority(a.Priority) {
		return false
	}
	if a.Reasons == nil {
		a.Reasons = []string{}
	}
	if a.UrgentPhrases == nil {
		a.UrgentPhrases = []string{}
	}
	if a.SuggestedDeadline != nil && parseDeadline(*a.SuggestedDeadline) == nil {
		a.SuggestedDeadline = nil
	}
	return true
}

// applyAgeEscalation only ever raises priority.
func applyAgeEscalation(a PriorityAnalysis, ageHours int) PriorityAnalysis {
	switch {
	case ageHours > constants.BoostToUrgentHours:
		a.Priority = constants.PriorityUrgent
		a.Reasons = append(a.Reasons, fmt.Sprintf("Bestellung seit %dh offen – überfällig", ageHours))
	case ageHours > constants.BoostToHighHours && a.Priority == constants.PriorityNormal:
		a.Priority = constants.PriorityHigh
		a.Reasons = append(a.Reasons, fmt.Sprintf("Bestellung seit %dh offen", ageHours))
	}
	return a
}

func (s *PriorityService) persist(order *models.Order, analysis PriorityAnalysis) error {
	var deadline *time.Time
	if analysis.SuggestedDeadline != nil {
		deadline = parseDeadline(*analysis.SuggestedDeadline)
	}
	now := s.now()
	if err := s.orderRepo.UpdatePriority(order.ID, repository.PriorityUpdate{
		Priority:          analysis.Priority,
		Reasons:           analysis.Reasons,
		SuggestedDeadline: deadline,
		UpdatedAt:         now,
	}); err != nil {
		return err
	}
	priority := analysis.Priority
	order.Priority = &priority
	order.PriorityReasons = analysis.Reasons
	order.SuggestedDeadline = deadline
	order.UpdatedAt = now
	return nil
}

// BuildTriagePrompt renders the classification instructions for one order.
func BuildTriagePrompt(order *models.Order, ageHours int) string {
	var b strings.Builder
	b.WriteString("Du bist Assistent eines Shops für personalisierte Songs und schätzt die Dringlichkeit einer Bestellung ein.\n")
	b.WriteString("Antworte ausschließlich mit JSON der Form ")
	b.WriteString(`{"priority":"urgent|high|normal|low","reasons":["..."],"suggestedDeadline":"YYYY-MM-DD oder null","urgentPhrases":["..."]}`)
	b.WriteString(".\n\nRegeln:\n")
	b.WriteString("- urgent: ein konkretes Datum in den nächsten 2-3 Tagen wird genannt oder der Text signalisiert extreme Eile.\n")
	b.WriteString("- high: ein Datum in der kommenden Woche oder spürbarer Zeitdruck.\n")
	b.WriteString("- normal: kein zeitlicher Hinweis.\n")
	b.WriteString("- low: der Kunde sagt ausdrücklich, dass Zeit keine Rolle spielt.\n")
	b.WriteString("Begründungen kurz und auf Deutsch. urgentPhrases enthält wörtliche Zitate aus dem Text.\n\n")
	fmt.Fprintf(&b, "Anlass: %s\n", occasionLabel(order.Occasion))
	fmt.Fprintf(&b, "Bestellung offen seit: %d Stunden\n", ageHours)
	b.WriteString("Express-Lieferung gebucht: nein\n")
	fmt.Fprintf(&b, "Geschichte:\n%s\n", strings.TrimSpace(order.Story))
	return b.String()
}

func isPriority(value string) bool {
	switch value {
	case constants.PriorityUrgent, constants.PriorityHigh, constants.PriorityNormal, constants.PriorityLow:
		return true
	}
	return false
}

func parseDeadline(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "null") {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC().Truncate(time.Microsecond)
			return &t
		}
	}
	return nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
