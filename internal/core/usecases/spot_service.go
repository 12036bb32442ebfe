package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
)

// SpotService is the spot registry.
type SpotService struct {
	store  ports.Store
	events ports.EventPublisher
	now    func() time.Time
}

// NewSpotService creates a new SpotService. events may be nil.
func NewSpotService(store ports.Store, events ports.EventPublisher) *SpotService {
	return &SpotService{store: store, events: events, now: utcNow}
}

// CreateSpot adds an available spot to a lot. An empty category means car.
func (s *SpotService) CreateSpot(ctx context.Context, lotID, label, category string) (*domain.Spot, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, domain.Validation("spot label must not be empty")
	}
	cat, err := domain.ParseSpotCategory(category)
	if err != nil {
		return nil, domain.Validation(fmt.Sprintf("category %q must be one of car, bike, ev", category))
	}

	spot := &domain.Spot{
		ID:        uuid.NewString(),
		LotID:     lotID,
		Label:     label,
		Category:  cat,
		Available: true,
		CreatedAt: s.now(),
	}

	err = s.store.InTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if _, err := repos.Lots.GetByID(ctx, lotID); err != nil {
			return err
		}
		return repos.Spots.Create(ctx, spot)
	})
	if err != nil {
		return nil, fmt.Errorf("create spot: %w", err)
	}

	publish(ctx, s.events, domain.ParkingEvent{
		Type:       domain.EventSpotCreated,
		LotID:      spot.LotID,
		SpotID:     spot.ID,
		Available:  boolPtr(true),
		OccurredAt: spot.CreatedAt,
	})
	return spot, nil
}

// ListSpots returns all spots, or only the available ones.
func (s *SpotService) ListSpots(ctx context.Context, onlyAvailable bool) ([]domain.Spot, error) {
	spots, err := s.store.Repositories().Spots.List(ctx, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}
	return spots, nil
}

// GetSpot returns a spot by ID.
func (s *SpotService) GetSpot(ctx context.Context, id string) (*domain.Spot, error) {
	return s.store.Repositories().Spots.GetByID(ctx, id)
}

// ReleaseSpot marks a spot available. It is an administrative override:
// active reservations on the spot are left untouched.
func (s *SpotService) ReleaseSpot(ctx context.Context, id string) (*domain.Spot, error) {
	var spot *domain.Spot
	err := s.store.InTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		var err error
		spot, err = repos.Spots.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := repos.Spots.SetAvailable(ctx, id, true); err != nil {
			return err
		}
		spot.Available = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("release spot: %w", err)
	}

	metrics.SpotsReleased.Inc()
	publish(ctx, s.events, domain.ParkingEvent{
		Type:       domain.EventSpotReleased,
		LotID:      spot.LotID,
		SpotID:     spot.ID,
		Available:  boolPtr(true),
		OccurredAt: s.now(),
	})
	return spot, nil
}
