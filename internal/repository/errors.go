package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicate is returned when an insert hits a unique constraint,
	// e.g. two materialization calls racing on the same visit date.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInsufficientStock is returned when a completion would drive a
	// branch stock quantity negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStale is returned when a guarded update matched no row because
	// another writer got there first.
	ErrStale = errors.New("stale state")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
