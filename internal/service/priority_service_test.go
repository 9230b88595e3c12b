package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/models"
)

func newPriorityServiceAt(env *serviceTestEnv, classifier Classifier, now time.Time) *PriorityService {
	svc := NewPriorityService(env.orders, classifier, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestPriorityRushBeatsModel(t *testing.T) {
	env := newServiceTestEnv(t)
	now := models.Now()
	order := env.createOrder(t, "MM-TEST-PRI1", constants.OrderStatusPaid, func(o *models.Order) {
		o.BumpRush = true
	})
	classifier := &stubClassifier{reply: `{"priority":"urgent","reasons":["Hochzeit morgen"],"suggestedDeadline":null,"urgentPhrases":["morgen"]}`}
	svc := newPriorityServiceAt(env, classifier, now)

	results, err := svc.AnalyzeOrders(context.Background(), []string{order.ID})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	analysis := results[0].Analysis
	if analysis.Priority != constants.PriorityHigh {
		t.Fatalf("rush must force high, got %s", analysis.Priority)
	}
	if len(analysis.Reasons) != 1 || !strings.Contains(analysis.Reasons[0], "Rush") {
		t.Fatalf("unexpected reasons: %v", analysis.Reasons)
	}
	if analysis.SuggestedDeadline == nil {
		t.Fatalf("rush must set a deadline")
	}
	deadline, err := time.Parse(time.RFC3339, *analysis.SuggestedDeadline)
	if err != nil || !deadline.Equal(now.Add(12*time.Hour).Truncate(time.Second)) {
		t.Fatalf("unexpected deadline %v (%v)", *analysis.SuggestedDeadline, err)
	}
	if classifier.callCount() != 0 {
		t.Fatalf("rush orders must not reach the model")
	}
	stored := env.reload(t, order.ID)
	if stored.PriorityValue() != constants.PriorityHigh || stored.SuggestedDeadline == nil {
		t.Fatalf("priority not persisted: %+v", stored)
	}
}

func TestPriorityTerminalOrdersAreLow(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.createOrder(t, "MM-TEST-PRI2", constants.OrderStatusDelivered, func(o *models.Order) {
		o.BumpRush = true
	})
	classifier := &stubClassifier{reply: `{"priority":"urgent","reasons":["x"]}`}
	svc := newPriorityServiceAt(env, classifier, models.Now())

	results, err := svc.AnalyzeOrders(context.Background(), []string{order.ID})
	if err != nil || len(results) != 1 {
		t.Fatalf("analyze failed: %v %v", results, err)
	}
	if results[0].Analysis.Priority != constants.PriorityLow || results[0].Analysis.Reasons[0] != "Bestellung bereits abgeschlossen" {
		t.Fatalf("unexpected terminal analysis: %+v", results[0].Analysis)
	}
	if results[0].Analysis.SuggestedDeadline != nil || classifier.callCount() != 0 {
		t.Fatalf("terminal orders need no deadline and no model call")
	}
}

func TestPriorityAgeEscalationToHigh(t *testing.T) {
	env := newServiceTestEnv(t)
	now := models.Now()
	order := env.createOrder(t, "MM-TEST-PRI3", constants.OrderStatusPaid, func(o *models.Order) {
		o.CreatedAt = now.Add(-50 * time.Hour)
		o.UpdatedAt = o.CreatedAt
	})
	classifier := &stubClassifier{reply: "```json\n{\"priority\":\"normal\",\"reasons\":[\"Kein Datum genannt\"],\"suggestedDeadline\":null,\"urgentPhrases\":[]}\n```"}
	svc := newPriorityServiceAt(env, classifier, now)

	results, err := svc.AnalyzeOrders(context.Background(), []string{order.ID})
	if err != nil || len(results) != 1 {
		t.Fatalf("analyze failed: %v %v", results, err)
	}
	analysis := results[0].Analysis
	if analysis.Priority != constants.PriorityHigh {
		t.Fatalf("expected high, got %s", analysis.Priority)
	}
	want := []string{"Kein Datum genannt", "Bestellung seit 50h offen"}
	if len(analysis.Reasons) != len(want) || analysis.Reasons[0] != want[0] || analysis.Reasons[1] != want[1] {
		t.Fatalf("unexpected reasons: %v", analysis.Reasons)
	}
}

func TestPriorityAgeEscalationToUrgentOverridesLow(t *testing.T) {
	env := newServiceTestEnv(t)
	now := models.Now()
	order := env.createOrder(t, "MM-TEST-PRI4", constants.OrderStatusInProduction, func(o *models.Order) {
		o.CreatedAt = now.Add(-73 * time.Hour)
		o.UpdatedAt = o.CreatedAt
	})
	classifier := &stubClassifier{reply: `{"priority":"low","reasons":["Zeit spielt keine Rolle"],"suggestedDeadline":null,"urgentPhrases":[]}`}
	svc := newPriorityServiceAt(env, classifier, now)

	results, err := svc.AnalyzeOrders(context.Background(), []string{order.ID})
	if err != nil || len(results) != 1 {
		t.Fatalf("analyze failed: %v %v", results, err)
	}
	analysis := results[0].Analysis
	if analysis.Priority != constants.PriorityUrgent {
		t.Fatalf("expected urgent, got %s", analysis.Priority)
	}
	last := analysis.Reasons[len(analysis.Reasons)-1]
	if !strings.Contains(last, "73h") || !strings.Contains(last, "überfällig") {
		t.Fatalf("unexpected overdue reason: %q", last)
	}
}

func TestPriorityLowIsKeptBelowUrgentThreshold(t *testing.T) {
	env := newServiceTestEnv(t)
	now := models.Now()
	order := env.createOrder(t, "MM-TEST-PRI5", constants.OrderStatusPaid, func(o *models.Order) {
		o.CreatedAt = now.Add(-60 * time.Hour)
		o.UpdatedAt = o.CreatedAt
	})
	classifier := &stubClassifier{reply: `{"priority":"low","reasons":["Geburtstag erst im Dezember"],"suggestedDeadline":"2026-12-01","urgentPhrases":[]}`}
	svc := newPriorityServiceAt(env, classifier, now)

	results, _ := svc.AnalyzeOrders(context.Background(), []string{order.ID})
	if len(results) != 1 || results[0].Analysis.Priority != constants.PriorityLow {
		t.Fatalf("low must not be raised at the high threshold: %+v", results)
	}
	stored := env.reload(t, order.ID)
	if stored.SuggestedDeadline == nil || stored.SuggestedDeadline.Format("2006-01-02") != "2026-12-01" {
		t.Fatalf("deadline not persisted: %v", stored.SuggestedDeadline)
	}
}

func TestPriorityModelFailureFallsBackPerOrder(t *testing.T) {
	env := newServiceTestEnv(t)
	now := models.Now()
	broken := env.createOrder(t, "MM-TEST-PRI6", constants.OrderStatusPaid, nil)
	garbage := &stubClassifier{reply: "Ich kann das leider nicht beurteilen."}
	svc := newPriorityServiceAt(env, garbage, now)

	results, err := svc.AnalyzeOrders(context.Background(), []string{broken.ID})
	if err != nil || len(results) != 1 {
		t.Fatalf("analyze failed: %v %v", results, err)
	}
	if results[0].Analysis.Priority != constants.PriorityNormal || results[0].Analysis.Reasons[0] != "Automatische Analyse nicht verfügbar" {
		t.Fatalf("unexpected fallback: %+v", results[0].Analysis)
	}

	failing := newPriorityServiceAt(env, &stubClassifier{err: errors.New("quota exceeded")}, now)
	results, err = failing.AnalyzeOrders(context.Background(), []string{broken.ID})
	if err != nil || len(results) != 1 || results[0].Analysis.Priority != constants.PriorityNormal {
		t.Fatalf("model error must degrade to normal: %+v %v", results, err)
	}
}

func TestAnalyzeUnprioritizedMatchesExplicitAnalysis(t *testing.T) {
	env := newServiceTestEnv(t)
	now := models.Now()
	rush := env.createOrder(t, "MM-TEST-AUTO1", constants.OrderStatusPaid, func(o *models.Order) {
		o.BumpRush = true
	})
	env.createOrder(t, "MM-TEST-AUTO2", constants.OrderStatusPending, nil)
	env.createOrder(t, "MM-TEST-AUTO3", constants.OrderStatusDelivered, nil)
	svc := newPriorityServiceAt(env, &stubClassifier{reply: `{"priority":"normal","reasons":["ok"]}`}, now)

	auto, err := svc.AnalyzeUnprioritized(context.Background())
	if err != nil {
		t.Fatalf("auto analyze failed: %v", err)
	}
	if len(auto) != 1 || auto[0].OrderID != rush.ID {
		t.Fatalf("auto mode should only pick the active unprioritized order: %+v", auto)
	}
	explicit, err := svc.AnalyzeOrders(context.Background(), []string{rush.ID})
	if err != nil || len(explicit) != 1 {
		t.Fatalf("explicit analyze failed: %v", err)
	}
	if explicit[0].Analysis.Priority != auto[0].Analysis.Priority || explicit[0].Analysis.Reasons[0] != auto[0].Analysis.Reasons[0] {
		t.Fatalf("entry points disagree: %+v vs %+v", explicit[0].Analysis, auto[0].Analysis)
	}
	again, err := svc.AnalyzeUnprioritized(context.Background())
	if err != nil || len(again) != 0 {
		t.Fatalf("prioritized orders must not be picked again: %+v %v", again, err)
	}
}
