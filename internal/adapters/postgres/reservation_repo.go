package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

const reservationColumns = `id::text, spot_id::text, start_time, end_time, vehicle_plate, status, created_at, ended_at`

// ReservationRepo implements ports.ReservationRepository with pgx.
type ReservationRepo struct {
	q querier
}

// Create inserts a reservation. The exclusion constraint on active windows
// rejects overlaps that slipped past the caller's check.
func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO reservations (id, spot_id, start_time, end_time, vehicle_plate, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, res.ID, res.SpotID, res.StartTime.UTC(), res.EndTime.UTC(), res.VehiclePlate, string(res.Status), res.CreatedAt)
	return translate(err, "spot", res.SpotID)
}

// GetByID returns a reservation by UUID.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	row := r.q.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if err != nil {
		return nil, translate(err, "reservation", id)
	}
	return res, nil
}

// FindActiveOverlapping returns active reservations of the spot intersecting [start, end).
func (r *ReservationRepo) FindActiveOverlapping(ctx context.Context, spotID string, start, end time.Time) ([]domain.Reservation, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE spot_id = $1 AND status = 'active'
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, spotID, start.UTC(), end.UTC())
	if err != nil {
		return nil, translate(err, "spot", spotID)
	}
	return collectReservations(rows)
}

// CountActiveExcept counts the spot's active reservations other than exceptID.
func (r *ReservationRepo) CountActiveExcept(ctx context.Context, spotID, exceptID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FROM reservations
		WHERE spot_id = $1 AND status = 'active' AND id <> $2
	`, spotID, exceptID).Scan(&n)
	if err != nil {
		return 0, translate(err, "spot", spotID)
	}
	return n, nil
}

// ListBySpot returns a spot's reservations, oldest first.
func (r *ReservationRepo) ListBySpot(ctx context.Context, spotID string) ([]domain.Reservation, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE spot_id = $1
		ORDER BY seq
	`, spotID)
	if err != nil {
		return nil, translate(err, "spot", spotID)
	}
	return collectReservations(rows)
}

// MarkEnded moves an active reservation to ended.
func (r *ReservationRepo) MarkEnded(ctx context.Context, id string, endedAt time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE reservations SET status = 'ended', ended_at = $2
		WHERE id = $1 AND status = 'active'
	`, id, endedAt.UTC())
	if err != nil {
		return translate(err, "reservation", id)
	}
	if tag.RowsAffected() == 0 {
		return domain.InvalidState("reservation " + id + " is not active")
	}
	return nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		res     domain.Reservation
		status  string
		endedAt *time.Time
	)
	err := row.Scan(&res.ID, &res.SpotID, &res.StartTime, &res.EndTime,
		&res.VehiclePlate, &status, &res.CreatedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	res.Status = domain.ReservationStatus(status)
	res.StartTime = res.StartTime.UTC()
	res.EndTime = res.EndTime.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	if endedAt != nil {
		t := endedAt.UTC()
		res.EndedAt = &t
	}
	return &res, nil
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()
	out := make([]domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, translate(err, "reservations", "")
		}
		out = append(out, *res)
	}
	return out, translate(rows.Err(), "reservations", "")
}
