package memory

import (
	"context"
	"time"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

// --- Lots ---

type lotRepo struct {
	s  *Store
	tx *tx
}

func (r *lotRepo) Create(_ context.Context, lot *domain.Lot) error {
	l := *lot
	return r.s.write(r.tx, func(s *Store) (func(), error) {
		if _, ok := s.lots[l.ID]; ok {
			return nil, domain.Conflict("lot " + l.ID + " already exists")
		}
		s.lots[l.ID] = l
		s.lotOrder = append(s.lotOrder, l.ID)
		return func() {
			delete(s.lots, l.ID)
			s.lotOrder = s.lotOrder[:len(s.lotOrder)-1]
		}, nil
	})
}

func (r *lotRepo) GetByID(_ context.Context, id string) (*domain.Lot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.lots[id]
	if !ok {
		return nil, domain.NotFound("lot", id)
	}
	return &l, nil
}

func (r *lotRepo) List(_ context.Context) ([]domain.Lot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Lot, 0, len(r.s.lotOrder))
	for _, id := range r.s.lotOrder {
		out = append(out, r.s.lots[id])
	}
	return out, nil
}

// --- Spots ---

type spotRepo struct {
	s  *Store
	tx *tx
}

func (r *spotRepo) Create(_ context.Context, spot *domain.Spot) error {
	sp := *spot
	return r.s.write(r.tx, func(s *Store) (func(), error) {
		if _, ok := s.lots[sp.LotID]; !ok {
			return nil, domain.NotFound("lot", sp.LotID)
		}
		key := labelKey(sp.LotID, sp.Label)
		if _, ok := s.labels[key]; ok {
			return nil, domain.Conflict("label " + sp.Label + " already exists in lot " + sp.LotID)
		}
		s.spots[sp.ID] = sp
		s.labels[key] = sp.ID
		s.spotOrder = append(s.spotOrder, sp.ID)
		return func() {
			delete(s.spots, sp.ID)
			delete(s.labels, key)
			s.spotOrder = s.spotOrder[:len(s.spotOrder)-1]
		}, nil
	})
}

func (r *spotRepo) GetByID(_ context.Context, id string) (*domain.Spot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sp, ok := r.s.spots[id]
	if !ok {
		return nil, domain.NotFound("spot", id)
	}
	return &sp, nil
}

func (r *spotRepo) GetForUpdate(ctx context.Context, id string) (*domain.Spot, error) {
	if r.tx != nil {
		if err := r.s.lockSpot(ctx, r.tx, id); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

func (r *spotRepo) List(_ context.Context, onlyAvailable bool) ([]domain.Spot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Spot, 0, len(r.s.spotOrder))
	for _, id := range r.s.spotOrder {
		sp := r.s.spots[id]
		if onlyAvailable && !sp.Available {
			continue
		}
		out = append(out, sp)
	}
	return out, nil
}

func (r *spotRepo) ListAvailableByLots(_ context.Context, lotIDs []string) ([]domain.Spot, error) {
	want := make(map[string]struct{}, len(lotIDs))
	for _, id := range lotIDs {
		want[id] = struct{}{}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Spot, 0)
	for _, id := range r.s.spotOrder {
		sp := r.s.spots[id]
		if _, ok := want[sp.LotID]; ok && sp.Available {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (r *spotRepo) SetAvailable(_ context.Context, id string, available bool) error {
	return r.s.write(r.tx, func(s *Store) (func(), error) {
		sp, ok := s.spots[id]
		if !ok {
			return nil, domain.NotFound("spot", id)
		}
		prev := sp.Available
		sp.Available = available
		s.spots[id] = sp
		return func() {
			sp.Available = prev
			s.spots[id] = sp
		}, nil
	})
}

// --- Reservations ---

type reservationRepo struct {
	s  *Store
	tx *tx
}

func (r *reservationRepo) Create(_ context.Context, res *domain.Reservation) error {
	rv := *res
	return r.s.write(r.tx, func(s *Store) (func(), error) {
		if _, ok := s.spots[rv.SpotID]; !ok {
			return nil, domain.NotFound("spot", rv.SpotID)
		}
		// Same guarantee as the postgres exclusion constraint.
		if rv.IsActive() {
			for _, id := range s.resOrder {
				other := s.reservations[id]
				if other.SpotID == rv.SpotID && other.IsActive() && other.Overlaps(rv.StartTime, rv.EndTime) {
					return nil, domain.Conflict("overlapping active reservation " + other.ID)
				}
			}
		}
		s.reservations[rv.ID] = rv
		s.resOrder = append(s.resOrder, rv.ID)
		return func() {
			delete(s.reservations, rv.ID)
			s.resOrder = s.resOrder[:len(s.resOrder)-1]
		}, nil
	})
}

func (r *reservationRepo) GetByID(_ context.Context, id string) (*domain.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rv, ok := r.s.reservations[id]
	if !ok {
		return nil, domain.NotFound("reservation", id)
	}
	return cloneReservation(rv), nil
}

func (r *reservationRepo) FindActiveOverlapping(_ context.Context, spotID string, start, end time.Time) ([]domain.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Reservation
	for _, id := range r.s.resOrder {
		rv := r.s.reservations[id]
		if rv.SpotID == spotID && rv.IsActive() && rv.Overlaps(start, end) {
			out = append(out, *cloneReservation(rv))
		}
	}
	return out, nil
}

func (r *reservationRepo) CountActiveExcept(_ context.Context, spotID, exceptID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, rv := range r.s.reservations {
		if rv.SpotID == spotID && rv.ID != exceptID && rv.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *reservationRepo) ListBySpot(_ context.Context, spotID string) ([]domain.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Reservation, 0)
	for _, id := range r.s.resOrder {
		if rv := r.s.reservations[id]; rv.SpotID == spotID {
			out = append(out, *cloneReservation(rv))
		}
	}
	return out, nil
}

func (r *reservationRepo) MarkEnded(_ context.Context, id string, endedAt time.Time) error {
	return r.s.write(r.tx, func(s *Store) (func(), error) {
		rv, ok := s.reservations[id]
		if !ok {
			return nil, domain.NotFound("reservation", id)
		}
		if !rv.IsActive() {
			return nil, domain.InvalidState("reservation " + id + " is not active")
		}
		prev := rv
		at := endedAt
		rv.Status = domain.ReservationEnded
		rv.EndedAt = &at
		s.reservations[id] = rv
		return func() { s.reservations[id] = prev }, nil
	})
}

func cloneReservation(rv domain.Reservation) *domain.Reservation {
	if rv.EndedAt != nil {
		at := *rv.EndedAt
		rv.EndedAt = &at
	}
	return &rv
}
