package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

const spotColumns = `id::text, lot_id::text, label, category, available, created_at`

// SpotRepo implements ports.SpotRepository with pgx.
type SpotRepo struct {
	q querier
}

// Create inserts a spot. The (lot_id, label) unique index reports duplicates.
func (r *SpotRepo) Create(ctx context.Context, s *domain.Spot) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO spots (id, lot_id, label, category, available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.LotID, s.Label, string(s.Category), s.Available, s.CreatedAt)
	return translate(err, "lot", s.LotID)
}

// GetByID returns a spot by UUID.
func (r *SpotRepo) GetByID(ctx context.Context, id string) (*domain.Spot, error) {
	row := r.q.QueryRow(ctx, `SELECT `+spotColumns+` FROM spots WHERE id = $1`, id)
	s, err := scanSpot(row)
	if err != nil {
		return nil, translate(err, "spot", id)
	}
	return s, nil
}

// GetForUpdate locks the spot row until the transaction ends.
func (r *SpotRepo) GetForUpdate(ctx context.Context, id string) (*domain.Spot, error) {
	row := r.q.QueryRow(ctx, `SELECT `+spotColumns+` FROM spots WHERE id = $1 FOR UPDATE`, id)
	s, err := scanSpot(row)
	if err != nil {
		return nil, translate(err, "spot", id)
	}
	return s, nil
}

// List returns spots in insertion order, optionally only the available ones.
func (r *SpotRepo) List(ctx context.Context, onlyAvailable bool) ([]domain.Spot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+spotColumns+` FROM spots
		WHERE NOT $1 OR available
		ORDER BY seq
	`, onlyAvailable)
	if err != nil {
		return nil, translate(err, "spots", "")
	}
	return collectSpots(rows)
}

// ListAvailableByLots returns the available spots of the given lots.
func (r *SpotRepo) ListAvailableByLots(ctx context.Context, lotIDs []string) ([]domain.Spot, error) {
	if len(lotIDs) == 0 {
		return []domain.Spot{}, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+spotColumns+` FROM spots
		WHERE lot_id = ANY($1::uuid[]) AND available
		ORDER BY seq
	`, lotIDs)
	if err != nil {
		return nil, translate(err, "spots", "")
	}
	return collectSpots(rows)
}

// SetAvailable updates the availability flag.
func (r *SpotRepo) SetAvailable(ctx context.Context, id string, available bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE spots SET available = $2 WHERE id = $1`, id, available)
	if err != nil {
		return translate(err, "spot", id)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("spot", id)
	}
	return nil
}

func scanSpot(row pgx.Row) (*domain.Spot, error) {
	var (
		s   domain.Spot
		cat string
	)
	if err := row.Scan(&s.ID, &s.LotID, &s.Label, &cat, &s.Available, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Category = domain.SpotCategory(cat)
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

func collectSpots(rows pgx.Rows) ([]domain.Spot, error) {
	defer rows.Close()
	spots := make([]domain.Spot, 0)
	for rows.Next() {
		s, err := scanSpot(rows)
		if err != nil {
			return nil, translate(err, "spots", "")
		}
		spots = append(spots, *s)
	}
	return spots, translate(rows.Err(), "spots", "")
}
