package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/balanceledger/internal/domain"
	"github.com/iho/balanceledger/internal/usecase"
	"github.com/iho/balanceledger/internal/usecase/mocks"
)

func newStoreWithAccount(t *testing.T, id string) *mocks.MemoryStore {
	t.Helper()

	store := mocks.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &domain.Account{ID: id, Balance: decimal.Zero}))

	return store
}

func newCoordinator(store *mocks.MemoryStore) *usecase.TransactionCoordinator {
	return usecase.NewTransactionCoordinator(store, store, store)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransactionCoordinator_ApplyOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("credit then debit recomputes from history", func(t *testing.T) {
		store := newStoreWithAccount(t, "acc-1")
		c := newCoordinator(store)

		balance, err := c.ApplyOperation(ctx, "acc-1", dec("200"), domain.ActionCredit)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec("200")), "got %s", balance)

		balance, err = c.ApplyOperation(ctx, "acc-1", dec("50"), domain.ActionDebit)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec("150")), "got %s", balance)

		history := store.History("acc-1")
		require.Len(t, history, 2)
		assert.Equal(t, domain.ActionCredit, history[0].Action)
		assert.Equal(t, domain.ActionDebit, history[1].Action)
		assert.True(t, store.Snapshot("acc-1").Equal(domain.SumSigned(history)))
	})

	t.Run("unknown account", func(t *testing.T) {
		store := mocks.NewMemoryStore()
		c := newCoordinator(store)

		_, err := c.ApplyOperation(ctx, "missing", dec("10"), domain.ActionCredit)
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("insufficient funds leaves state untouched", func(t *testing.T) {
		store := newStoreWithAccount(t, "acc-1")
		c := newCoordinator(store)

		_, err := c.ApplyOperation(ctx, "acc-1", dec("100"), domain.ActionCredit)
		require.NoError(t, err)

		_, err = c.ApplyOperation(ctx, "acc-1", dec("100.01"), domain.ActionDebit)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Len(t, store.History("acc-1"), 1)
		assert.True(t, store.Snapshot("acc-1").Equal(dec("100")))
	})

	t.Run("debit of the exact balance empties the account", func(t *testing.T) {
		store := newStoreWithAccount(t, "acc-1")
		c := newCoordinator(store)

		_, err := c.ApplyOperation(ctx, "acc-1", dec("75.25"), domain.ActionCredit)
		require.NoError(t, err)

		balance, err := c.ApplyOperation(ctx, "acc-1", dec("75.25"), domain.ActionDebit)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("non-positive amounts never reach the store", func(t *testing.T) {
		store := newStoreWithAccount(t, "acc-1")
		c := newCoordinator(store)

		for _, amount := range []string{"0", "-5", "0.001"} {
			_, err := c.ApplyOperation(ctx, "acc-1", dec(amount), domain.ActionDebit)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
		}
		assert.Empty(t, store.History("acc-1"))
	})

	t.Run("unknown action", func(t *testing.T) {
		store := newStoreWithAccount(t, "acc-1")
		c := newCoordinator(store)

		_, err := c.ApplyOperation(ctx, "acc-1", dec("5"), domain.Action("refund"))
		assert.ErrorIs(t, err, domain.ErrInvalidAction)
		assert.Empty(t, store.History("acc-1"))
	})

	t.Run("drifted snapshot cannot drive the balance negative", func(t *testing.T) {
		store := newStoreWithAccount(t, "acc-1")
		c := newCoordinator(store)

		_, err := c.ApplyOperation(ctx, "acc-1", dec("10"), domain.ActionCredit)
		require.NoError(t, err)

		// The snapshot claims more than history holds; the pre-check passes
		// but the recomputed balance would be negative.
		store.SetSnapshot("acc-1", dec("500"))

		_, err = c.ApplyOperation(ctx, "acc-1", dec("50"), domain.ActionDebit)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.ErrorIs(t, err, domain.ErrNegativeBalance)
		assert.Len(t, store.History("acc-1"), 1)
		assert.True(t, store.Snapshot("acc-1").Equal(dec("500")))
	})

	t.Run("commit failure leaves no orphan history", func(t *testing.T) {
		store := newStoreWithAccount(t, "acc-1")
		store.CommitErr = func() error { return errors.New("connection reset") }
		c := newCoordinator(store)

		_, err := c.ApplyOperation(ctx, "acc-1", dec("10"), domain.ActionCredit)
		var txErr *domain.TransactionError
		require.ErrorAs(t, err, &txErr)
		assert.Empty(t, store.History("acc-1"))
		assert.True(t, store.Snapshot("acc-1").IsZero())
	})

	t.Run("caller cancellation does not abandon the unit", func(t *testing.T) {
		store := newStoreWithAccount(t, "acc-1")
		c := newCoordinator(store)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		balance, err := c.ApplyOperation(cancelled, "acc-1", dec("10"), domain.ActionCredit)
		require.NoError(t, err)
		assert.True(t, balance.Equal(dec("10")))
		assert.Len(t, store.History("acc-1"), 1)
	})
}

func TestTransactionCoordinator_RollsBackOnEveryFailure(t *testing.T) {
	ctx := context.Background()
	errStore := errors.New("store unavailable")

	tests := []struct {
		name  string
		setup func(*mocks.MockAccountRepository, *mocks.MockHistoryRepository)
		want  error
	}{
		{
			name: "lock fails",
			setup: func(accRepo *mocks.MockAccountRepository, _ *mocks.MockHistoryRepository) {
				accRepo.GetByIDForUpdateFunc = func(context.Context, usecase.Transaction, string) (*domain.Account, error) {
					return nil, errStore
				}
			},
			want: errStore,
		},
		{
			name: "append fails",
			setup: func(_ *mocks.MockAccountRepository, histRepo *mocks.MockHistoryRepository) {
				histRepo.AppendFunc = func(context.Context, usecase.Transaction, *domain.HistoryRecord) (int64, error) {
					return 0, errStore
				}
			},
			want: errStore,
		},
		{
			name: "sum fails",
			setup: func(_ *mocks.MockAccountRepository, histRepo *mocks.MockHistoryRepository) {
				histRepo.SumSignedFunc = func(context.Context, usecase.Transaction, string) (decimal.Decimal, error) {
					return decimal.Zero, errStore
				}
			},
			want: errStore,
		},
		{
			name: "snapshot write fails",
			setup: func(accRepo *mocks.MockAccountRepository, _ *mocks.MockHistoryRepository) {
				accRepo.UpdateBalanceFunc = func(context.Context, usecase.Transaction, string, decimal.Decimal, time.Time) error {
					return errStore
				}
			},
			want: errStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accRepo := mocks.NewMockAccountRepository()
			histRepo := mocks.NewMockHistoryRepository()
			txMgr := mocks.NewMockTransactionManager()
			require.NoError(t, accRepo.Create(ctx, &domain.Account{ID: "acc-1", Balance: dec("100")}))
			tt.setup(accRepo, histRepo)

			c := usecase.NewTransactionCoordinator(txMgr, accRepo, histRepo)
			_, err := c.ApplyOperation(ctx, "acc-1", dec("10"), domain.ActionCredit)

			assert.ErrorIs(t, err, tt.want)
			txs := txMgr.Transactions()
			require.Len(t, txs, 1)
			assert.False(t, txs[0].Committed)
			assert.True(t, txs[0].RolledBack)
		})
	}
}

func TestTransactionCoordinator_BeginFailure(t *testing.T) {
	txMgr := mocks.NewMockTransactionManager()
	beginErr := domain.NewTransactionError("begin", true, errors.New("pool exhausted"))
	txMgr.BeginFunc = func(context.Context) (usecase.Transaction, error) {
		return nil, beginErr
	}

	c := usecase.NewTransactionCoordinator(txMgr, mocks.NewMockAccountRepository(), mocks.NewMockHistoryRepository())
	_, err := c.ApplyOperation(context.Background(), "acc-1", dec("1"), domain.ActionCredit)

	assert.ErrorIs(t, err, beginErr)
	assert.True(t, domain.IsRetryable(err))
}

func TestTransactionCoordinator_LockTimeoutIsRetryable(t *testing.T) {
	ctx := context.Background()
	store := newStoreWithAccount(t, "acc-1")

	// Hold the row lock from a foreign unit for longer than the timeout.
	holder, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = store.GetByIDForUpdate(ctx, holder, "acc-1")
	require.NoError(t, err)
	defer holder.Rollback(ctx)

	c := newCoordinator(store).WithTimeout(20 * time.Millisecond)
	_, err = c.ApplyOperation(ctx, "acc-1", dec("1"), domain.ActionCredit)

	assert.True(t, domain.IsRetryable(err), "expected retryable error, got %v", err)
	assert.Empty(t, store.History("acc-1"))
}

func TestTransactionCoordinator_NoLostUpdates(t *testing.T) {
	ctx := context.Background()
	store := newStoreWithAccount(t, "acc-1")
	c := newCoordinator(store)

	_, err := c.ApplyOperation(ctx, "acc-1", dec("1000"), domain.ActionCredit)
	require.NoError(t, err)

	const workers = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			action := domain.ActionCredit
			if i%2 == 0 {
				action = domain.ActionDebit
			}
			if _, err := c.ApplyOperation(ctx, "acc-1", dec("7.50"), action); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	history := store.History("acc-1")
	require.Len(t, history, workers+1)

	// Replaying history in lock-acquisition order yields the snapshot.
	running := decimal.Zero
	for _, r := range history {
		running = running.Add(r.Signed())
		assert.False(t, running.IsNegative())
	}
	assert.True(t, store.Snapshot("acc-1").Equal(running))
	assert.True(t, running.Equal(dec("1000")), "got %s", running)
}

func TestTransactionCoordinator_TwoConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	store := newStoreWithAccount(t, "acc-1")
	c := newCoordinator(store)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ApplyOperation(ctx, "acc-1", dec("50"), domain.ActionCredit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.History("acc-1"), 2)
	assert.True(t, store.Snapshot("acc-1").Equal(dec("100")))
}

func TestTransactionCoordinator_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	store := newStoreWithAccount(t, "acc-1")
	c := newCoordinator(store)

	_, err := c.ApplyOperation(ctx, "acc-1", dec("100"), domain.ActionCredit)
	require.NoError(t, err)

	const workers = 30

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ApplyOperation(ctx, "acc-1", dec("10"), domain.ActionDebit)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.True(t, store.Snapshot("acc-1").IsZero())
	assert.Len(t, store.History("acc-1"), 11)
}
