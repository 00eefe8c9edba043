package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicateKeyCode = "23505"
	pgCheckViolation   = "23514"
)

// ErrConstraint is returned when a row violates a CHECK constraint.
var ErrConstraint = errors.New("constraint violation")

// MapError translates database errors to domain errors.
// It maps sql.ErrNoRows and pgx.ErrNoRows to notFoundErr, PostgreSQL unique
// violations (23505) to duplicateErr, and check violations (23514) to
// ErrConstraint. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return notFoundErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgDuplicateKeyCode:
			return duplicateErr
		case pgCheckViolation:
			return errors.Join(ErrConstraint, err)
		}
	}

	return err
}
