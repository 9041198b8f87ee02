package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/balanceledger/internal/domain"
	"github.com/iho/balanceledger/internal/usecase"
	"github.com/iho/balanceledger/internal/usecase/mocks"
)

type recordingMetrics struct {
	mu          sync.Mutex
	results     map[string]int
	hits        int
	misses      int
	cacheErrors map[string]int
	drift       int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		results:     make(map[string]int),
		cacheErrors: make(map[string]int),
	}
}

func (m *recordingMetrics) ObserveOperation(action domain.Action, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[string(action)+"/"+result]++
}

func (m *recordingMetrics) CacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *recordingMetrics) CacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func (m *recordingMetrics) CacheError(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheErrors[op]++
}

func (m *recordingMetrics) ReconciliationDiscrepancy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drift++
}

type balanceFixture struct {
	store   *mocks.MemoryStore
	cache   *mocks.FakeBalanceCache
	metrics *recordingMetrics
	uc      *usecase.BalanceUseCase
}

func newBalanceFixture(t *testing.T, accountIDs ...string) *balanceFixture {
	t.Helper()

	store := mocks.NewMemoryStore()
	for _, id := range accountIDs {
		require.NoError(t, store.Create(context.Background(), &domain.Account{ID: id, Balance: decimal.Zero}))
	}

	cache := mocks.NewFakeBalanceCache()
	metrics := newRecordingMetrics()
	uc := usecase.NewBalanceUseCase(
		usecase.NewTransactionCoordinator(store, store, store),
		store,
		cache,
		metrics,
		zerolog.Nop(),
	)

	return &balanceFixture{store: store, cache: cache, metrics: metrics, uc: uc}
}

func TestBalanceUseCase_Scenario(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture(t, "acc-1")

	view, err := f.uc.Credit(ctx, "acc-1", dec("200"))
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(dec("200")))

	view, err = f.uc.Debit(ctx, "acc-1", dec("50"))
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(dec("150")))

	_, err = f.uc.Debit(ctx, "acc-1", dec("500"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	view, err = f.uc.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(dec("150")))

	assert.Len(t, f.store.History("acc-1"), 2)
	assert.Equal(t, 1, f.metrics.results["credit/success"])
	assert.Equal(t, 1, f.metrics.results["debit/success"])
	assert.Equal(t, 1, f.metrics.results["debit/insufficient_funds"])
}

func TestBalanceUseCase_GetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("hit does not touch the store", func(t *testing.T) {
		f := newBalanceFixture(t, "acc-1")
		_, err := f.uc.Credit(ctx, "acc-1", dec("42"))
		require.NoError(t, err)

		view, err := f.uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, view.Balance.Equal(dec("42")))
		assert.Equal(t, 0, f.store.Reads())
		assert.Equal(t, 1, f.metrics.hits)
	})

	t.Run("miss reads the snapshot and populates", func(t *testing.T) {
		f := newBalanceFixture(t, "acc-1")
		f.store.SetSnapshot("acc-1", dec("12.34"))

		view, err := f.uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, view.Balance.Equal(dec("12.34")))
		assert.Equal(t, 1, f.store.Reads())

		cached, ok := f.cache.Peek("acc-1")
		require.True(t, ok)
		assert.True(t, cached.Equal(dec("12.34")))

		_, err = f.uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, 1, f.store.Reads())
	})

	t.Run("repeated reads agree", func(t *testing.T) {
		f := newBalanceFixture(t, "acc-1")
		_, err := f.uc.Credit(ctx, "acc-1", dec("9.99"))
		require.NoError(t, err)

		first, err := f.uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		second, err := f.uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, first.Balance.Equal(second.Balance))
		assert.Len(t, f.store.History("acc-1"), 1)
	})

	t.Run("unknown account", func(t *testing.T) {
		f := newBalanceFixture(t)

		_, err := f.uc.GetBalance(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
		_, ok := f.cache.Peek("missing")
		assert.False(t, ok)
	})

	t.Run("cache failure falls back to the store", func(t *testing.T) {
		f := newBalanceFixture(t, "acc-1")
		f.store.SetSnapshot("acc-1", dec("5"))
		f.cache.GetFunc = func(context.Context, string) (decimal.Decimal, bool, error) {
			return decimal.Zero, false, errors.New("cache down")
		}

		view, err := f.uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, view.Balance.Equal(dec("5")))
		assert.Equal(t, 1, f.metrics.cacheErrors["get"])
	})
}

func TestBalanceUseCase_CacheTracksCommittedState(t *testing.T) {
	ctx := context.Background()

	t.Run("mutation overwrites the cached value", func(t *testing.T) {
		f := newBalanceFixture(t, "acc-1")

		_, err := f.uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)

		_, err = f.uc.Credit(ctx, "acc-1", dec("30"))
		require.NoError(t, err)

		view, err := f.uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, view.Balance.Equal(dec("30")))
	})

	t.Run("failed mutation leaves the cache untouched", func(t *testing.T) {
		f := newBalanceFixture(t, "acc-1")
		_, err := f.uc.Credit(ctx, "acc-1", dec("10"))
		require.NoError(t, err)
		sets := f.cache.Sets

		_, err = f.uc.Debit(ctx, "acc-1", dec("11"))
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		assert.Equal(t, sets, f.cache.Sets)
		cached, _ := f.cache.Peek("acc-1")
		assert.True(t, cached.Equal(dec("10")))
	})

	t.Run("cache write failure does not fail a committed mutation", func(t *testing.T) {
		f := newBalanceFixture(t, "acc-1")
		f.cache.SetFunc = func(context.Context, string, decimal.Decimal) error {
			return errors.New("cache down")
		}

		view, err := f.uc.Credit(ctx, "acc-1", dec("10"))
		require.NoError(t, err)
		assert.True(t, view.Balance.Equal(dec("10")))
		assert.True(t, f.store.Snapshot("acc-1").Equal(dec("10")))
		assert.Equal(t, 1, f.metrics.cacheErrors["set"])
	})

	t.Run("accounts are isolated", func(t *testing.T) {
		f := newBalanceFixture(t, "acc-1", "acc-2")

		_, err := f.uc.Credit(ctx, "acc-1", dec("100"))
		require.NoError(t, err)

		view, err := f.uc.GetBalance(ctx, "acc-2")
		require.NoError(t, err)
		assert.True(t, view.Balance.IsZero())
	})
}

func TestBalanceUseCase_InvalidAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	coordinator := mocks.NewMockOperationApplier(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)

	// Neither the coordinator nor the cache may be reached.
	uc := usecase.NewBalanceUseCase(coordinator, mocks.NewMockAccountRepository(), cache, nil, zerolog.Nop())

	for _, amount := range []string{"0", "-1", "1.005", "10000000000000"} {
		_, err := uc.Debit(context.Background(), "acc-1", dec(amount))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)

		_, err = uc.Credit(context.Background(), "acc-1", dec(amount))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
	}
}

func TestBalanceUseCase_WithMockedCollaborators(t *testing.T) {
	ctx := context.Background()

	t.Run("committed balance is written through", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		coordinator := mocks.NewMockOperationApplier(ctrl)
		cache := mocks.NewMockBalanceCache(ctrl)

		gomock.InOrder(
			coordinator.EXPECT().
				ApplyOperation(gomock.Any(), "acc-1", dec("25"), domain.ActionCredit).
				Return(dec("125"), nil),
			cache.EXPECT().Set(gomock.Any(), "acc-1", dec("125")).Return(nil),
		)

		uc := usecase.NewBalanceUseCase(coordinator, mocks.NewMockAccountRepository(), cache, nil, zerolog.Nop())
		view, err := uc.Credit(ctx, "acc-1", dec("25"))
		require.NoError(t, err)
		assert.True(t, view.Balance.Equal(dec("125")))
	})

	t.Run("coordinator failure skips the cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		coordinator := mocks.NewMockOperationApplier(ctrl)
		cache := mocks.NewMockBalanceCache(ctrl)

		txErr := domain.NewTransactionError("lock account", true, errors.New("lock timeout"))
		coordinator.EXPECT().
			ApplyOperation(gomock.Any(), "acc-1", gomock.Any(), domain.ActionDebit).
			Return(decimal.Zero, txErr)

		uc := usecase.NewBalanceUseCase(coordinator, mocks.NewMockAccountRepository(), cache, nil, zerolog.Nop())
		_, err := uc.Debit(ctx, "acc-1", dec("1"))
		assert.ErrorIs(t, err, txErr)
		assert.True(t, domain.IsRetryable(err))
	})

	t.Run("hit short-circuits the read path", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockBalanceCache(ctrl)
		accounts := mocks.NewMockAccountRepository()
		accounts.GetByIDFunc = func(context.Context, string) (*domain.Account, error) {
			t.Fatal("store must not be read on a cache hit")
			return nil, nil
		}

		cache.EXPECT().Get(gomock.Any(), "acc-1").Return(dec("7"), true, nil)

		uc := usecase.NewBalanceUseCase(mocks.NewMockOperationApplier(ctrl), accounts, cache, nil, zerolog.Nop())
		view, err := uc.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		assert.True(t, view.Balance.Equal(dec("7")))
	})
}

func TestBalanceUseCase_ConcurrentMutationsAndReads(t *testing.T) {
	ctx := context.Background()
	f := newBalanceFixture(t, "acc-1")

	const workers = 20

	var wg sync.WaitGroup
	for range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.uc.Credit(ctx, "acc-1", dec("5"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			view, err := f.uc.GetBalance(ctx, "acc-1")
			if assert.NoError(t, err) {
				assert.False(t, view.Balance.IsNegative())
			}
		}()
	}
	wg.Wait()

	assert.True(t, f.store.Snapshot("acc-1").Equal(dec("100")))
	assert.Len(t, f.store.History("acc-1"), workers)
}
