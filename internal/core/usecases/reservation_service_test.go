package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/bilbopark/internal/adapters/memory"
	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
	"github.com/samirrijal/bilbopark/internal/core/usecases"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 1, h, m, 0, 0, time.UTC)
}

type fixture struct {
	store        *memory.Store
	spots        *usecases.SpotService
	reservations *usecases.ReservationService
	pub          *mockPublisher
	spot         *domain.Spot
}

func newFixture(t *testing.T, cache ports.CacheService) *fixture {
	t.Helper()
	store := memory.NewStore()
	pub := &mockPublisher{}
	lots := usecases.NewLotService(store, nil, nil)
	spots := usecases.NewSpotService(store, nil)
	lot := mustLot(t, lots, "Abando", 43.26, -2.93)
	spot, err := spots.CreateSpot(context.Background(), lot.ID, "A1", "car")
	if err != nil {
		t.Fatalf("create spot: %v", err)
	}
	return &fixture{
		store:        store,
		spots:        spots,
		reservations: usecases.NewReservationService(store, cache, pub),
		pub:          pub,
		spot:         spot,
	}
}

func (f *fixture) book(spotID string, start, end time.Time) (*domain.Reservation, error) {
	return f.reservations.CreateReservation(context.Background(), usecases.CreateReservationInput{
		SpotID: spotID, Start: start, End: end, VehiclePlate: "1234ABC",
	})
}

func TestReservationService_Create(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.book(f.spot.ID, at(10, 0), at(11, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ID == "" || res.Status != domain.ReservationActive {
		t.Errorf("expected active reservation with ID, got %+v", res)
	}

	spot, _ := f.spots.GetSpot(context.Background(), f.spot.ID)
	if spot.Available {
		t.Error("spot must be unavailable after reservation")
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != domain.EventReservationCreated {
		t.Errorf("expected reservation.created event, got %v", got)
	}
	assertAvailabilityInvariant(t, f.store)
}

func TestReservationService_Create_FutureWindowStillBlocksSpot(t *testing.T) {
	f := newFixture(t, nil)
	start := time.Now().Add(48 * time.Hour)

	if _, err := f.book(f.spot.ID, start, start.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	spot, _ := f.spots.GetSpot(context.Background(), f.spot.ID)
	if spot.Available {
		t.Error("availability reflects booking intent, not wall-clock time")
	}
}

func TestReservationService_Create_Validation(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.book(f.spot.ID, at(11, 0), at(11, 0)); !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("end == start: expected validation, got %v", err)
	}
	if _, err := f.book(f.spot.ID, at(11, 0), at(10, 0)); !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("end < start: expected validation, got %v", err)
	}
	_, err := f.reservations.CreateReservation(context.Background(), usecases.CreateReservationInput{
		SpotID: f.spot.ID, Start: at(10, 0), End: at(11, 0), VehiclePlate: " ",
	})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Errorf("blank plate: expected validation, got %v", err)
	}
	if _, err := f.book("missing", at(10, 0), at(11, 0)); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("missing spot: expected not found, got %v", err)
	}
	assertAvailabilityInvariant(t, f.store)
}

func TestReservationService_OverlapAndTouchingBoundary(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.book(f.spot.ID, at(10, 0), at(11, 0)); err != nil {
		t.Fatalf("A: unexpected error: %v", err)
	}
	if _, err := f.book(f.spot.ID, at(10, 30), at(11, 30)); !domain.IsKind(err, domain.KindConflict) {
		t.Errorf("B: expected conflict, got %v", err)
	}
	if _, err := f.book(f.spot.ID, at(11, 0), at(12, 0)); err != nil {
		t.Errorf("C: touching boundary must succeed, got %v", err)
	}
	assertAvailabilityInvariant(t, f.store)
}

func TestReservationService_NonUTCInputNormalised(t *testing.T) {
	f := newFixture(t, nil)
	madrid := time.FixedZone("CET", 3600)

	if _, err := f.book(f.spot.ID, at(10, 0), at(11, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 11:30 CET is 10:30 UTC and overlaps.
	_, err := f.book(f.spot.ID, time.Date(2026, 3, 1, 11, 30, 0, 0, madrid), time.Date(2026, 3, 1, 12, 30, 0, 0, madrid))
	if !domain.IsKind(err, domain.KindConflict) {
		t.Errorf("expected conflict across time zones, got %v", err)
	}
	// 12:00 CET is 11:00 UTC and only touches.
	res, err := f.book(f.spot.ID, time.Date(2026, 3, 1, 12, 0, 0, 0, madrid), time.Date(2026, 3, 1, 13, 0, 0, 0, madrid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StartTime.Location() != time.UTC {
		t.Errorf("expected UTC start, got %s", res.StartTime.Location())
	}
}

func TestReservationService_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.book(f.spot.ID, at(10, 0), at(11, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ended, err := f.reservations.EndReservation(ctx, res.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ended.Status != domain.ReservationEnded || ended.EndedAt == nil {
		t.Errorf("expected ended reservation with ended_at, got %+v", ended)
	}

	spot, _ := f.spots.GetSpot(ctx, f.spot.ID)
	if !spot.Available {
		t.Error("spot must be available after ending its reservation")
	}
	assertAvailabilityInvariant(t, f.store)

	// The window is free again.
	if _, err := f.book(f.spot.ID, at(10, 0), at(11, 0)); err != nil {
		t.Errorf("rebooking an ended window must succeed, got %v", err)
	}
}

func TestReservationService_EndTwice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, _ := f.book(f.spot.ID, at(10, 0), at(11, 0))
	if _, err := f.reservations.EndReservation(ctx, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A second booking makes the spot unavailable again.
	if _, err := f.book(f.spot.ID, at(12, 0), at(13, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.reservations.EndReservation(ctx, first.ID)
	if !domain.IsKind(err, domain.KindInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	spot, _ := f.spots.GetSpot(ctx, f.spot.ID)
	if spot.Available {
		t.Error("failed end must not change availability")
	}
	assertAvailabilityInvariant(t, f.store)
}

func TestReservationService_End_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.reservations.EndReservation(context.Background(), "missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReservationService_ListSpotReservations(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a, _ := f.book(f.spot.ID, at(10, 0), at(11, 0))
	_, _ = f.reservations.EndReservation(ctx, a.ID)
	_, _ = f.book(f.spot.ID, at(12, 0), at(13, 0))

	history, err := f.reservations.ListSpotReservations(ctx, f.spot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(history))
	}
	if history[0].Status != domain.ReservationEnded || history[1].Status != domain.ReservationActive {
		t.Errorf("unexpected history order: %s, %s", history[0].Status, history[1].Status)
	}

	if _, err := f.reservations.ListSpotReservations(ctx, "missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReservationService_Idempotency(t *testing.T) {
	cache := newMockCache()
	f := newFixture(t, cache)
	ctx := context.Background()
	in := usecases.CreateReservationInput{
		SpotID: f.spot.ID, Start: at(10, 0), End: at(11, 0), VehiclePlate: "1234ABC", IdempotencyKey: "k-1",
	}

	first, err := f.reservations.CreateReservation(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := f.reservations.CreateReservation(ctx, in)
	if err != nil {
		t.Fatalf("replay must succeed, got %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected replayed reservation %s, got %s", first.ID, again.ID)
	}

	history, _ := f.reservations.ListSpotReservations(ctx, f.spot.ID)
	if len(history) != 1 {
		t.Errorf("expected a single stored reservation, got %d", len(history))
	}

	// Without the key the same request is an overlap.
	in.IdempotencyKey = ""
	if _, err := f.reservations.CreateReservation(ctx, in); !domain.IsKind(err, domain.KindConflict) {
		t.Errorf("expected conflict without key, got %v", err)
	}
}

func TestReservationService_IdempotentReplayReflectsEnd(t *testing.T) {
	f := newFixture(t, newMockCache())
	ctx := context.Background()
	in := usecases.CreateReservationInput{
		SpotID: f.spot.ID, Start: at(10, 0), End: at(11, 0), VehiclePlate: "1234ABC", IdempotencyKey: "k-end",
	}

	first, err := f.reservations.CreateReservation(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.reservations.EndReservation(ctx, first.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	again, err := f.reservations.CreateReservation(ctx, in)
	if err != nil {
		t.Fatalf("replay must succeed, got %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected replayed reservation %s, got %s", first.ID, again.ID)
	}
	if again.Status != domain.ReservationEnded || again.EndedAt == nil {
		t.Errorf("expected replay to report ended, got %s", again.Status)
	}

	other, err := f.spots.CreateSpot(ctx, f.spot.LotID, "A2", "car")
	if err != nil {
		t.Fatalf("create spot: %v", err)
	}
	in.SpotID = other.ID
	if _, err := f.reservations.CreateReservation(ctx, in); !domain.IsKind(err, domain.KindConflict) {
		t.Errorf("expected conflict for key reused on another spot, got %v", err)
	}
}

func TestReservationService_InfrastructureFailureSurfaces(t *testing.T) {
	down := domain.Infrastructure("begin tx", errors.New("connection refused"))
	store := &mockStore{
		repos: memory.NewStore().Repositories(),
		inTxFn: func(ctx context.Context, fn ports.TxFunc) error {
			return down
		},
	}
	svc := usecases.NewReservationService(store, nil, nil)

	_, err := svc.CreateReservation(context.Background(), usecases.CreateReservationInput{
		SpotID: "s", Start: at(10, 0), End: at(11, 0), VehiclePlate: "1234ABC",
	})
	if !domain.IsKind(err, domain.KindInfrastructure) {
		t.Errorf("expected infrastructure error, got %v", err)
	}
}

// Concurrent attempts over random windows: every accepted set of active
// reservations must be pairwise non-overlapping.
func TestReservationService_ConcurrentCreateNeverDoubleBooks(t *testing.T) {
	f := newFixture(t, nil)
	rng := rand.New(rand.NewSource(42))

	type window struct{ start, end time.Time }
	windows := make([]window, 64)
	for i := range windows {
		start := at(8, 0).Add(time.Duration(rng.Intn(10*60)) * time.Minute)
		windows[i] = window{start, start.Add(time.Duration(15+rng.Intn(120)) * time.Minute)}
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  []*domain.Reservation
		conflicts int
	)
	for _, w := range windows {
		wg.Add(1)
		go func(w window) {
			defer wg.Done()
			res, err := f.book(f.spot.ID, w.start, w.end)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted = append(accepted, res)
			case domain.IsKind(err, domain.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(w)
	}
	wg.Wait()

	if len(accepted) == 0 {
		t.Fatal("expected at least one accepted reservation")
	}
	if len(accepted)+conflicts != len(windows) {
		t.Errorf("expected %d outcomes, got %d", len(windows), len(accepted)+conflicts)
	}
	for i := range accepted {
		for j := i + 1; j < len(accepted); j++ {
			a, b := accepted[i], accepted[j]
			if a.Overlaps(b.StartTime, b.EndTime) {
				t.Errorf("double booking: %s [%s,%s) and %s [%s,%s)",
					a.ID, a.StartTime.Format("15:04"), a.EndTime.Format("15:04"),
					b.ID, b.StartTime.Format("15:04"), b.EndTime.Format("15:04"))
			}
		}
	}
	assertAvailabilityInvariant(t, f.store)
}

// Identical windows on distinct spots must all succeed.
func TestReservationService_ConcurrentDistinctSpots(t *testing.T) {
	store := memory.NewStore()
	lots := usecases.NewLotService(store, nil, nil)
	spots := usecases.NewSpotService(store, nil)
	svc := usecases.NewReservationService(store, nil, nil)
	ctx := context.Background()
	lot := mustLot(t, lots, "Abando", 43.26, -2.93)

	ids := make([]string, 16)
	for i := range ids {
		sp, err := spots.CreateSpot(ctx, lot.ID, fmt.Sprintf("S%d", i), "car")
		if err != nil {
			t.Fatalf("create spot: %v", err)
		}
		ids[i] = sp.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.CreateReservation(ctx, usecases.CreateReservationInput{
				SpotID: id, Start: at(10, 0), End: at(11, 0), VehiclePlate: "1234ABC",
			})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	avail, _ := spots.ListSpots(ctx, true)
	if len(avail) != 0 {
		t.Errorf("expected every spot booked, %d still available", len(avail))
	}
}

func TestReservationService_EndKeepsSpotHeldByOtherActive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.book(f.spot.ID, at(10, 0), at(11, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.book(f.spot.ID, at(11, 0), at(12, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.reservations.EndReservation(ctx, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	spot, _ := f.spots.GetSpot(ctx, f.spot.ID)
	if spot.Available {
		t.Error("spot must stay unavailable while another reservation is active")
	}
	assertAvailabilityInvariant(t, f.store)

	if _, err := f.reservations.EndReservation(ctx, second.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	spot, _ = f.spots.GetSpot(ctx, f.spot.ID)
	if !spot.Available {
		t.Error("spot must be available once no reservation is active")
	}
	assertAvailabilityInvariant(t, f.store)

	last := f.pub.events[len(f.pub.events)-1]
	if last.Type != domain.EventReservationEnded || last.Available == nil || !*last.Available {
		t.Errorf("expected reservation.ended with available=true, got %+v", last)
	}
}
