package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
	"github.com/samirrijal/bilbopark/internal/pkg/logging"
	"github.com/samirrijal/bilbopark/internal/pkg/metrics"
	"github.com/samirrijal/bilbopark/internal/pkg/telemetry"
)

const idempotencyTTL = 24 * 60 * 60 // seconds

// CreateReservationInput carries a booking request.
type CreateReservationInput struct {
	SpotID       string
	Start        time.Time
	End          time.Time
	VehiclePlate string
	// IdempotencyKey is optional. A repeated key returns the reservation
	// created by the first successful request.
	IdempotencyKey string
}

// ReservationService is the reservation engine. It owns the reservation
// lifecycle and keeps spot availability in step with active reservations.
type ReservationService struct {
	store  ports.Store
	cache  ports.CacheService
	events ports.EventPublisher
	tracer trace.Tracer
	now    func() time.Time
}

// NewReservationService creates a new ReservationService. cache and events may be nil.
func NewReservationService(store ports.Store, cache ports.CacheService, events ports.EventPublisher) *ReservationService {
	return &ReservationService{
		store:  store,
		cache:  cache,
		events: events,
		tracer: telemetry.Tracer("bilbopark/reservations"),
		now:    utcNow,
	}
}

// CreateReservation books a spot for [Start, End). The overlap check and the
// insert run in one transaction holding the spot lock.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (_ *domain.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.CreateReservation",
		trace.WithAttributes(attribute.String("spot.id", in.SpotID)))
	defer func() { endSpan(span, err) }()

	start, end := in.Start.UTC(), in.End.UTC()
	if !end.After(start) {
		return nil, domain.Validation("end_time must be after start_time")
	}
	plate := strings.TrimSpace(in.VehiclePlate)
	if plate == "" {
		return nil, domain.Validation("vehicle_plate must not be empty")
	}

	if prev, ok, err := s.replay(ctx, in); ok || err != nil {
		return prev, err
	}

	res := &domain.Reservation{
		ID:           uuid.NewString(),
		SpotID:       in.SpotID,
		StartTime:    start,
		EndTime:      end,
		VehiclePlate: plate,
		Status:       domain.ReservationActive,
		CreatedAt:    s.now(),
	}

	var lotID string
	err = s.store.InTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		spot, err := repos.Spots.GetForUpdate(ctx, in.SpotID)
		if err != nil {
			return err
		}
		lotID = spot.LotID

		overlapping, err := repos.Reservations.FindActiveOverlapping(ctx, in.SpotID, start, end)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return domain.Conflict(fmt.Sprintf(
				"spot %s is already reserved from %s to %s",
				in.SpotID,
				overlapping[0].StartTime.Format(time.RFC3339),
				overlapping[0].EndTime.Format(time.RFC3339),
			))
		}

		if err := repos.Reservations.Create(ctx, res); err != nil {
			return err
		}
		return repos.Spots.SetAvailable(ctx, in.SpotID, false)
	})
	if err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			metrics.ReservationConflicts.Inc()
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	metrics.ReservationsCreated.Inc()
	s.remember(ctx, in.IdempotencyKey, res)
	publish(ctx, s.events, domain.ParkingEvent{
		Type:          domain.EventReservationCreated,
		LotID:         lotID,
		SpotID:        res.SpotID,
		ReservationID: res.ID,
		Available:     boolPtr(false),
		OccurredAt:    res.CreatedAt,
	})
	return res, nil
}

// EndReservation ends an active reservation. The spot becomes available
// unless another active reservation still holds it.
func (s *ReservationService) EndReservation(ctx context.Context, id string) (_ *domain.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.EndReservation",
		trace.WithAttributes(attribute.String("reservation.id", id)))
	defer func() { endSpan(span, err) }()

	current, err := s.store.Repositories().Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		res       *domain.Reservation
		lotID     string
		available bool
	)
	err = s.store.InTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		// Spot lock first, the same order CreateReservation uses.
		spot, err := repos.Spots.GetForUpdate(ctx, current.SpotID)
		if err != nil {
			return err
		}
		lotID = spot.LotID

		res, err = repos.Reservations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !res.IsActive() {
			return domain.InvalidState(fmt.Sprintf("reservation %s is %s, not active", id, res.Status))
		}

		others, err := repos.Reservations.CountActiveExcept(ctx, res.SpotID, id)
		if err != nil {
			return err
		}
		available = others == 0

		endedAt := s.now()
		if err := repos.Reservations.MarkEnded(ctx, id, endedAt); err != nil {
			return err
		}
		if err := repos.Spots.SetAvailable(ctx, res.SpotID, available); err != nil {
			return err
		}
		res.Status = domain.ReservationEnded
		res.EndedAt = &endedAt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("end reservation: %w", err)
	}

	metrics.ReservationsEnded.Inc()
	publish(ctx, s.events, domain.ParkingEvent{
		Type:          domain.EventReservationEnded,
		LotID:         lotID,
		SpotID:        res.SpotID,
		ReservationID: res.ID,
		Available:     boolPtr(available),
		OccurredAt:    *res.EndedAt,
	})
	return res, nil
}

// GetReservation returns a reservation by ID.
func (s *ReservationService) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	return s.store.Repositories().Reservations.GetByID(ctx, id)
}

// ListSpotReservations returns the reservation history of a spot, oldest first.
func (s *ReservationService) ListSpotReservations(ctx context.Context, spotID string) ([]domain.Reservation, error) {
	repos := s.store.Repositories()
	if _, err := repos.Spots.GetByID(ctx, spotID); err != nil {
		return nil, err
	}
	list, err := repos.Reservations.ListBySpot(ctx, spotID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

func idempotencyKey(key string) string {
	return "idem:reservation:" + key
}

// replay returns the current state of the reservation created under the
// request's idempotency key. The cache holds only the reservation id.
func (s *ReservationService) replay(ctx context.Context, in CreateReservationInput) (*domain.Reservation, bool, error) {
	if s.cache == nil || in.IdempotencyKey == "" {
		return nil, false, nil
	}
	data, err := s.cache.Get(ctx, idempotencyKey(in.IdempotencyKey))
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			logging.FromContext(ctx).Warn("idempotency lookup failed", "error", err)
		}
		metrics.CacheMisses.WithLabelValues("idempotency").Inc()
		return nil, false, nil
	}

	prev, err := s.store.Repositories().Reservations.GetByID(ctx, string(data))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, false, nil
		}
		return nil, true, fmt.Errorf("replay reservation: %w", err)
	}
	metrics.CacheHits.WithLabelValues("idempotency").Inc()
	if prev.SpotID != in.SpotID {
		return nil, true, domain.Conflict("idempotency key was already used for another spot")
	}
	return prev, true, nil
}

func (s *ReservationService) remember(ctx context.Context, key string, res *domain.Reservation) {
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.Set(ctx, idempotencyKey(key), []byte(res.ID), idempotencyTTL); err != nil {
		logging.FromContext(ctx).Warn("idempotency store failed", "error", err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
