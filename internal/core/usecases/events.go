package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
	"github.com/samirrijal/bilbopark/internal/pkg/logging"
	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

// publish emits an event for a committed mutation. Delivery failures are
// logged and counted; the mutation itself has already succeeded.
func publish(ctx context.Context, events ports.EventPublisher, ev domain.ParkingEvent) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, ev); err != nil {
		metrics.EventPublishErrors.WithLabelValues(string(ev.Type)).Inc()
		logging.FromContext(ctx).Warn("event publish failed",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func boolPtr(b bool) *bool { return &b }
