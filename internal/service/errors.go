package service

import (
	"errors"

	"github.com/slotbook/booking-api/internal/repository"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
)

// RetryMessage is shown when a transaction lost a lock race or the store was unreachable.
const RetryMessage = "Service temporarily unavailable, please retry"

// StoreError classifies an unexpected repository failure. Errors that are
// already AppErrors pass through unchanged.
func StoreError(message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, repository.ErrRetryable) {
		return apperrors.Retryable(RetryMessage, err)
	}
	return apperrors.Internal(message, err)
}
