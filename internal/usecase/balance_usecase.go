package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/balanceledger/internal/domain"
)

// BalanceView is the public shape of an account balance.
type BalanceView struct {
	AccountID string
	Balance   decimal.Decimal
}

// BalanceUseCase serves balance reads through the cache and routes
// mutations through the transaction coordinator.
type BalanceUseCase struct {
	coordinator OperationApplier
	accounts    AccountReader
	cache       BalanceCache
	metrics     MetricsRecorder
	logger      zerolog.Logger
}

// NewBalanceUseCase creates a new BalanceUseCase. A nil recorder disables metrics.
func NewBalanceUseCase(
	coordinator OperationApplier,
	accounts AccountReader,
	cache BalanceCache,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *BalanceUseCase {
	if metrics == nil {
		metrics = nopRecorder{}
	}

	return &BalanceUseCase{
		coordinator: coordinator,
		accounts:    accounts,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
	}
}

// GetBalance returns the cached balance, falling back to the account
// snapshot on a miss and populating the cache with it.
func (uc *BalanceUseCase) GetBalance(ctx context.Context, accountID string) (*BalanceView, error) {
	balance, ok, err := uc.cache.Get(ctx, accountID)
	switch {
	case err != nil:
		uc.metrics.CacheError("get")
		uc.logger.Warn().Err(err).Str("account_id", accountID).Msg("balance cache read failed, falling back to store")
	case ok:
		uc.metrics.CacheHit()
		return &BalanceView{AccountID: accountID, Balance: balance}, nil
	default:
		uc.metrics.CacheMiss()
	}

	account, err := uc.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	uc.storeInCache(ctx, account.ID, account.Balance)

	return &BalanceView{AccountID: account.ID, Balance: account.Balance}, nil
}

// Debit removes amount from the account balance.
func (uc *BalanceUseCase) Debit(ctx context.Context, accountID string, amount decimal.Decimal) (*BalanceView, error) {
	return uc.apply(ctx, accountID, amount, domain.ActionDebit)
}

// Credit adds amount to the account balance.
func (uc *BalanceUseCase) Credit(ctx context.Context, accountID string, amount decimal.Decimal) (*BalanceView, error) {
	return uc.apply(ctx, accountID, amount, domain.ActionCredit)
}

func (uc *BalanceUseCase) apply(ctx context.Context, accountID string, amount decimal.Decimal, action domain.Action) (*BalanceView, error) {
	start := time.Now()

	if err := domain.ValidateAmount(amount); err != nil {
		uc.metrics.ObserveOperation(action, ResultInvalidAmount, time.Since(start))
		return nil, err
	}

	balance, err := uc.coordinator.ApplyOperation(ctx, accountID, amount, action)
	uc.metrics.ObserveOperation(action, operationResult(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	// Only a committed balance ever reaches the cache.
	uc.storeInCache(ctx, accountID, balance)

	uc.logger.Debug().
		Str("account_id", accountID).
		Str("action", string(action)).
		Str("amount", amount.StringFixed(domain.BalanceScale)).
		Str("balance", balance.StringFixed(domain.BalanceScale)).
		Msg("operation applied")

	return &BalanceView{AccountID: accountID, Balance: balance}, nil
}

func (uc *BalanceUseCase) storeInCache(ctx context.Context, accountID string, balance decimal.Decimal) {
	if err := uc.cache.Set(ctx, accountID, balance); err != nil {
		uc.metrics.CacheError("set")
		uc.logger.Warn().Err(err).Str("account_id", accountID).Msg("balance cache write failed")
	}
}

func operationResult(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidAction):
		return ResultInvalidAmount
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ResultInsufficientFunds
	case errors.Is(err, domain.ErrAccountNotFound):
		return ResultNotFound
	default:
		return ResultFailure
	}
}
