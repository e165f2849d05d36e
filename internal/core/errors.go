package core

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the ledger wraps exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrConcurrency  = errors.New("concurrent update, retry later")
	ErrCatchUpLimit = errors.New("catch-up limit exceeded")
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be a positive number of cents", ErrValidation)
	ErrAmountTooLarge     = fmt.Errorf("%w: amount must not exceed %d cents", ErrValidation, MaxCents)
	ErrBalanceOverflow    = fmt.Errorf("%w: balance would leave the representable range", ErrValidation)
	ErrInvalidMonth       = fmt.Errorf("%w: month must be between 1 and 12", ErrValidation)
	ErrEmptyName          = fmt.Errorf("%w: name is required", ErrValidation)
	ErrEmptyCategory      = fmt.Errorf("%w: category is required", ErrValidation)
	ErrMissingDate        = fmt.Errorf("%w: date is required", ErrValidation)
	ErrMissingAccount     = fmt.Errorf("%w: account_id is required", ErrValidation)
	ErrMissingDestination = fmt.Errorf("%w: destination_account_id is required for transfers", ErrValidation)
	ErrSameAccount        = fmt.Errorf("%w: source and destination account must differ", ErrValidation)
	ErrUnknownAccount     = fmt.Errorf("%w: account does not exist", ErrValidation)
	ErrUnknownCategory    = fmt.Errorf("%w: category does not exist", ErrValidation)
	ErrTypeChange         = fmt.Errorf("%w: cannot change between transfer and income/expense", ErrValidation)
	ErrTransferEdit       = fmt.Errorf("%w: transfers cannot be edited, delete and recreate instead", ErrValidation)
)

// Invalidf returns a validation error with a formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns a not-found error naming the missing entity.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
