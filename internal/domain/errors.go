package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeBalance   = errors.New("recalculated balance is negative")
	ErrAccountExists     = errors.New("account already exists")

	// Operation errors
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidAction    = errors.New("action must be debit or credit")
	ErrInvalidAccountID = errors.New("invalid account id")
)

// TransactionError reports a failure of the atomic unit itself: lock timeout,
// store unavailability, constraint violation. The unit has been rolled back.
type TransactionError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed during %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// NewTransactionError wraps err as a failure of the named step.
func NewTransactionError(op string, retryable bool, err error) *TransactionError {
	return &TransactionError{Op: op, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err is a transaction failure that is safe to
// retry as a whole operation.
func IsRetryable(err error) bool {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr.Retryable
	}
	return false
}
