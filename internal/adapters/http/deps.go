package http

import (
	"context"

	"github.com/samirrijal/bilbopark/internal/core/usecases"
	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
)

// CheckFunc reports whether a backing service is reachable.
type CheckFunc func(ctx context.Context) error

// EventStream delivers raw event payloads for a subject pattern.
type EventStream interface {
	Subscribe(subject string, fn func(data []byte)) (unsubscribe func() error, err error)
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Lots         *usecases.LotService
	Spots        *usecases.SpotService
	Reservations *usecases.ReservationService
	Search       *usecases.SearchService

	// Events feeds the /ws relay; nil disables it.
	Events EventStream
	// Checks are run by /v1/ready, keyed by component name.
	Checks map[string]CheckFunc
	// PoolStat refreshes DB pool gauges on each /metrics scrape; may be nil.
	PoolStat func() metrics.PoolStat
}
