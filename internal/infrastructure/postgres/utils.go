package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// SQLSTATE que indican que la transacción puede reintentarse.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == sqlStateUniqueViolation
}

// isRetryable serialización, deadlock o lock_timeout.
func isRetryable(err error) bool {
	switch pgCode(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	}
	return false
}

// mapPgError traduce errores de PostgreSQL a errores de dominio; el resto se devuelve igual.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isRetryable(err):
		return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
	case pgCode(err) == sqlStateCheckViolation:
		// stock.quantity >= 0 es la última red; el motor valida antes de escribir.
		return fmt.Errorf("%w: %v", domain.ErrInsufficientStock, err)
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
