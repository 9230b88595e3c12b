package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestShopMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetrics(reg)
	m.IncTriage("high", "rule")
	m.IncTriage("high", "rule")
	m.IncWebhookEvent("checkout.session.completed", "")
	m.AddBatchItems("deliver_all", 2, 1)
	m.IncSideEffectFailure("delivery_email")
	m.ObserveGeneration("cover", true, 1500*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "order_triage_total", "source", "rule"); err != nil || got != 2 {
		t.Fatalf("expected triage=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stripe_webhook_events_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected webhook unknown outcome=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "order_batch_items_total", "result", "failed"); err != nil || got != 1 {
		t.Fatalf("expected failed batch items=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "best_effort_failures_total", "effect", "delivery_email"); err != nil || got != 1 {
		t.Fatalf("expected side effect failure=1, got %f err=%v", got, err)
	}
}

func TestNilShopMetricsIsSafe(t *testing.T) {
	var m *ShopMetrics
	m.IncTriage("low", "rule")
	m.ObserveJob("auto_prioritize", time.Second)
	NewShopMetrics(nil).AddBatchItems("deliver_all", 1, 0)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue(), nil
				}
			}
		}
		return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}
