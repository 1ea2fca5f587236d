package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/slotbook/booking-api/internal/repository"
)

// PostgreSQL error codes
const (
	uniqueViolationCode      = "23505"
	foreignKeyViolationCode  = "23503"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
	lockNotAvailableCode     = "55P03"
	queryCanceledCode        = "57014"
)

// mapError wraps err with the repository sentinel matching its cause.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", repository.ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %s: %v", repository.ErrDuplicate, pqErr.Constraint, err)
		case foreignKeyViolationCode:
			return fmt.Errorf("%w: %s: %v", repository.ErrNotFound, pqErr.Constraint, err)
		case serializationFailureCode, deadlockDetectedCode, lockNotAvailableCode, queryCanceledCode:
			return fmt.Errorf("%w: %v", repository.ErrRetryable, err)
		}
		// class 08: connection exception
		if strings.HasPrefix(string(pqErr.Code), "08") {
			return fmt.Errorf("%w: %v", repository.ErrRetryable, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", repository.ErrRetryable, err)
	}

	return err
}

// checkRowsAffected turns a zero-row UPDATE or DELETE into ErrNotFound.
func checkRowsAffected(result sql.Result, entity string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, entity)
	}
	return nil
}
