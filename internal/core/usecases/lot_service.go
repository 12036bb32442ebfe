package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
	"github.com/samirrijal/bilbopark/internal/pkg/logging"
	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
)

const (
	lotsAllKey = "lots:all"
	lotsTTL    = 300 // seconds
)

// LotService is the lot registry.
type LotService struct {
	store  ports.Store
	cache  ports.CacheService
	events ports.EventPublisher
	now    func() time.Time
}

// NewLotService creates a new LotService. cache and events may be nil.
func NewLotService(store ports.Store, cache ports.CacheService, events ports.EventPublisher) *LotService {
	return &LotService{store: store, cache: cache, events: events, now: utcNow}
}

// CreateLot registers a lot.
func (s *LotService) CreateLot(ctx context.Context, name string, lat, lon float64) (*domain.Lot, error) {
	lot := &domain.Lot{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Location:  domain.GeoPoint{Lat: lat, Lon: lon},
		CreatedAt: s.now(),
	}
	if err := lot.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Repositories().Lots.Create(ctx, lot); err != nil {
		return nil, fmt.Errorf("create lot: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, lotsAllKey); err != nil {
			logging.FromContext(ctx).Warn("lot cache invalidation failed", "error", err)
		}
	}
	publish(ctx, s.events, domain.ParkingEvent{Type: domain.EventLotCreated, LotID: lot.ID, OccurredAt: lot.CreatedAt})
	return lot, nil
}

// ListLots returns every lot, served from cache when possible.
func (s *LotService) ListLots(ctx context.Context) ([]domain.Lot, error) {
	var lots []domain.Lot
	if s.cacheGet(ctx, lotsAllKey, "list_lots", &lots) {
		return lots, nil
	}

	lots, err := s.store.Repositories().Lots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}

	s.cacheSet(ctx, lotsAllKey, lots)
	return lots, nil
}

// GetLot returns a lot by ID.
func (s *LotService) GetLot(ctx context.Context, id string) (*domain.Lot, error) {
	key := "lots:id:" + id
	var lot domain.Lot
	if s.cacheGet(ctx, key, "get_lot", &lot) {
		return &lot, nil
	}

	found, err := s.store.Repositories().Lots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, found)
	return found, nil
}

func (s *LotService) cacheGet(ctx context.Context, key, op string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func (s *LotService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, lotsTTL); err != nil {
		logging.FromContext(ctx).Warn("lot cache write failed", "key", key, "error", err)
	}
}
