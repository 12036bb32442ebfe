package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samirrijal/bilbopark/internal/core/domain"
)

// SQLSTATE codes mapped onto domain errors.
const (
	codeInvalidText        = "22P02"
	codeForeignKey         = "23503"
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// translate converts a pgx error into a domain error. resource and id
// describe the row the statement addressed.
func translate(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(resource, id)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInvalidText:
			// A malformed uuid can never match a row.
			return domain.NotFound(resource, id)
		case codeUniqueViolation:
			return &domain.Error{Kind: domain.KindConflict, Message: pgErr.Detail, Err: err}
		case codeExclusionViolation:
			return &domain.Error{Kind: domain.KindConflict, Message: "overlapping active reservation", Err: err}
		case codeForeignKey:
			return &domain.Error{Kind: domain.KindNotFound, Message: pgErr.Detail, Err: err}
		}
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Infrastructure(resource, err)
}
