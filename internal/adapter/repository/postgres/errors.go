package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/balanceledger/internal/domain"
)

// PostgreSQL error codes the engine reacts to.
const (
	pgErrUniqueViolation      = "23505"
	pgErrCheckViolation       = "23514"
	pgErrForeignKeyViolation  = "23503"
	pgErrSerializationFailure = "40001"
	pgErrDeadlock             = "40P01"
	pgErrLockNotAvailable     = "55P03"
	pgErrQueryCanceled        = "57014"
)

// translateError maps driver failures onto domain errors. Lock waits,
// deadlocks, serialization failures and timeouts roll the whole transaction
// back, so they are reported as retryable.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrLockNotAvailable, pgErrDeadlock, pgErrSerializationFailure, pgErrQueryCanceled:
			return domain.NewTransactionError(op, true, err)
		case pgErrCheckViolation:
			return domain.NewTransactionError(op, false, errors.Join(domain.ErrNegativeBalance, err))
		case pgErrForeignKeyViolation:
			return domain.ErrAccountNotFound
		}
		return domain.NewTransactionError(op, false, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return domain.NewTransactionError(op, true, err)
	}

	return domain.NewTransactionError(op, pgconn.SafeToRetry(err), err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
