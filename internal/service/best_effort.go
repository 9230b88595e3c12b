package service

import (
	"context"
	"errors"

	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/metrics"
	"github.com/melodiemoment/api/internal/notify"
)

// runBestEffort runs a side effect that must never fail the caller.
// A failure is logged at warn level and counted; the return value reports
// whether the effect completed.
func runBestEffort(ctx context.Context, m *metrics.ShopMetrics, name string, fn func(context.Context) error) bool {
	err := fn(ctx)
	if err == nil {
		return true
	}
	if errors.Is(err, notify.ErrDisabled) {
		logger.FromContext(ctx).Debugw("best_effort_skipped", "effect", name, "reason", "channel_disabled")
		return false
	}
	logger.FromContext(ctx).Warnw("best_effort_failed", "effect", name, "error", err)
	m.IncSideEffectFailure(name)
	return false
}
