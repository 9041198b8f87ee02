package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/balanceledger/internal/domain"
)

// TransactionCoordinator applies balance mutations. Every call runs in one
// atomic unit: lock the account row, append a history record, recompute the
// balance from history, write the snapshot, commit.
type TransactionCoordinator struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	historyRepo HistoryRepository
	timeout     time.Duration
	now         func() time.Time
}

// NewTransactionCoordinator creates a new TransactionCoordinator.
func NewTransactionCoordinator(
	txManager TransactionManager,
	accountRepo AccountRepository,
	historyRepo HistoryRepository,
) *TransactionCoordinator {
	return &TransactionCoordinator{
		txManager:   txManager,
		accountRepo: accountRepo,
		historyRepo: historyRepo,
		timeout:     DefaultTransactionTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithTimeout overrides the upper bound of a single atomic unit.
func (c *TransactionCoordinator) WithTimeout(timeout time.Duration) *TransactionCoordinator {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// ApplyOperation appends one operation for the account and returns the
// balance recomputed from the full history. Exactly one history record exists
// after a nil error and none after any error.
func (c *TransactionCoordinator) ApplyOperation(
	ctx context.Context,
	accountID string,
	amount decimal.Decimal,
	action domain.Action,
) (decimal.Decimal, error) {
	// 0. Validate before touching the store
	if !action.Valid() {
		return decimal.Zero, domain.ErrInvalidAction
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}

	// The unit is not bound to the caller: once begun it commits or rolls back.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	// 1. Begin transaction
	tx, err := c.txManager.Begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	// 2. Lock the account row
	account, err := c.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	// 3. Pre-check against the locked snapshot
	if action == domain.ActionDebit && !account.CanDebit(amount) {
		return decimal.Zero, domain.ErrInsufficientFunds
	}

	// 4. Append history record
	now := c.now()
	record := &domain.HistoryRecord{
		AccountID:  account.ID,
		Action:     action,
		Amount:     amount.Round(domain.BalanceScale),
		OccurredAt: now,
	}
	if _, err := c.historyRepo.Append(ctx, tx, record); err != nil {
		return decimal.Zero, err
	}

	// 5. Recompute from history and write the snapshot
	balance, err := c.recalculate(ctx, tx, account.ID)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.accountRepo.UpdateBalance(ctx, tx, account.ID, balance, now); err != nil {
		return decimal.Zero, err
	}

	// 6. Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

func (c *TransactionCoordinator) recalculate(ctx context.Context, tx Transaction, accountID string) (decimal.Decimal, error) {
	sum, err := c.historyRepo.SumSigned(ctx, tx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := domain.Recalculate(sum)
	if errors.Is(err, domain.ErrNegativeBalance) {
		return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, err)
	}

	return balance, err
}
