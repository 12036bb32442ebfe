package postgres

import (
	"context"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

// LotRepo implements ports.LotRepository with pgx.
type LotRepo struct {
	q querier
}

// Create inserts a lot.
func (r *LotRepo) Create(ctx context.Context, l *domain.Lot) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO lots (id, name, lat, lon, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, l.ID, l.Name, l.Location.Lat, l.Location.Lon, l.CreatedAt)
	return translate(err, "lot", l.ID)
}

// GetByID returns a lot by UUID.
func (r *LotRepo) GetByID(ctx context.Context, id string) (*domain.Lot, error) {
	var l domain.Lot
	err := r.q.QueryRow(ctx, `
		SELECT id::text, name, lat, lon, created_at
		FROM lots WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Location.Lat, &l.Location.Lon, &l.CreatedAt)
	if err != nil {
		return nil, translate(err, "lot", id)
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

// List returns all lots in insertion order.
func (r *LotRepo) List(ctx context.Context) ([]domain.Lot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id::text, name, lat, lon, created_at
		FROM lots ORDER BY seq
	`)
	if err != nil {
		return nil, translate(err, "lots", "")
	}
	defer rows.Close()

	lots := make([]domain.Lot, 0)
	for rows.Next() {
		var l domain.Lot
		if err := rows.Scan(&l.ID, &l.Name, &l.Location.Lat, &l.Location.Lon, &l.CreatedAt); err != nil {
			return nil, translate(err, "lots", "")
		}
		l.CreatedAt = l.CreatedAt.UTC()
		lots = append(lots, l)
	}
	return lots, translate(rows.Err(), "lots", "")
}
