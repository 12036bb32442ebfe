package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/bilbopark/internal/core/domain"
	"github.com/samirrijal/bilbopark/internal/core/ports"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps pgxpool.Pool and implements ports.Store.
type DB struct {
	Pool *pgxpool.Pool
}

var _ ports.Store = (*DB)(nil)

// New creates a new DB connection pool. maxConns <= 0 keeps the pgx default.
func New(ctx context.Context, dsn string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases pool resources.
func (db *DB) Close() {
	db.Pool.Close()
}

// Ping checks database reachability.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Repositories returns repositories running each statement in autocommit mode.
func (db *DB) Repositories() ports.Repositories {
	return repositories(db.Pool)
}

// InTx runs fn inside a READ COMMITTED transaction. Row locks taken with
// SELECT ... FOR UPDATE are held until commit or rollback.
func (db *DB) InTx(ctx context.Context, fn ports.TxFunc) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return domain.Infrastructure("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			err = fmt.Errorf("transaction panic: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, domain.Infrastructure("rollback", rbErr))
			}
			return
		}
		if cErr := tx.Commit(ctx); cErr != nil {
			err = translate(cErr, "transaction", "")
		}
	}()

	return fn(ctx, repositories(tx))
}

func repositories(q querier) ports.Repositories {
	return ports.Repositories{
		Lots:         &LotRepo{q: q},
		Spots:        &SpotRepo{q: q},
		Reservations: &ReservationRepo{q: q},
	}
}
