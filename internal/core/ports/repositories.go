package ports

import (
	"context"
	"time"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

// LotRepository persists lots.
type LotRepository interface {
	Create(ctx context.Context, lot *domain.Lot) error
	GetByID(ctx context.Context, id string) (*domain.Lot, error)
	List(ctx context.Context) ([]domain.Lot, error)
}

// SpotRepository persists spots.
type SpotRepository interface {
	// Create fails with a conflict error when the label is taken within the lot
	// and with a not-found error when the lot does not exist.
	Create(ctx context.Context, spot *domain.Spot) error
	GetByID(ctx context.Context, id string) (*domain.Spot, error)
	// GetForUpdate reads the spot and holds its row lock until the
	// surrounding transaction ends. Only meaningful inside Store.InTx.
	GetForUpdate(ctx context.Context, id string) (*domain.Spot, error)
	List(ctx context.Context, onlyAvailable bool) ([]domain.Spot, error)
	// ListAvailableByLots returns available spots of the given lots in insertion order.
	ListAvailableByLots(ctx context.Context, lotIDs []string) ([]domain.Spot, error)
	SetAvailable(ctx context.Context, id string, available bool) error
}

// ReservationRepository persists reservations.
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	// FindActiveOverlapping returns active reservations of the spot whose
	// window intersects the half-open window [start, end).
	FindActiveOverlapping(ctx context.Context, spotID string, start, end time.Time) ([]domain.Reservation, error)
	// CountActiveExcept counts the spot's active reservations other than exceptID.
	CountActiveExcept(ctx context.Context, spotID, exceptID string) (int, error)
	ListBySpot(ctx context.Context, spotID string) ([]domain.Reservation, error)
	MarkEnded(ctx context.Context, id string, endedAt time.Time) error
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Lots         LotRepository
	Spots        SpotRepository
	Reservations ReservationRepository
}

// TxFunc is run by Store.InTx with repositories bound to the transaction.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is the transactional record store shared by all use cases.
type Store interface {
	// Repositories returns autocommit repositories for single-statement work.
	Repositories() Repositories
	// InTx runs fn in one transaction: it commits when fn returns nil and
	// rolls back on error or panic.
	InTx(ctx context.Context, fn TxFunc) error
}
