package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrOfferNotFound    = errors.New("offer not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrOfferInUse       = errors.New("offer has recorded visits or conversions")
	ErrPropertyInUse    = errors.New("property has recorded conversions")
	ErrInvalidTargeting = errors.New("exactly one of included/excluded countries must be set")
)

// SQLSTATE коды PostgreSQL
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
)

const conversionTupleIndex = "callbacks_unique_idx"

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// isUniqueViolation проверяет код ошибки, а не текст сообщения.
// constraint пустой означает любой уникальный индекс.
func isUniqueViolation(err error, constraint string) bool {
	pgErr, ok := pgError(err)
	if !ok || pgErr.Code != sqlStateUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == sqlStateForeignKeyViolation
}

func isCheckViolation(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == sqlStateCheckViolation
}
