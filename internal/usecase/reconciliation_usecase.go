package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/balanceledger/internal/domain"
)

// reconcileBatchSize is the page size used when walking every account.
const reconcileBatchSize = 100

// ReconciliationUseCase checks that every snapshot equals the fold over its
// history and repairs drifted snapshots.
type ReconciliationUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	historyRepo HistoryRepository
	cache       BalanceCache
	metrics     MetricsRecorder
	logger      zerolog.Logger
	timeout     time.Duration
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	historyRepo HistoryRepository,
	cache BalanceCache,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	if metrics == nil {
		metrics = nopRecorder{}
	}

	return &ReconciliationUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		historyRepo: historyRepo,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		timeout:     DefaultTransactionTimeout,
	}
}

// WithTimeout overrides the upper bound of a single reconciliation unit.
func (uc *ReconciliationUseCase) WithTimeout(timeout time.Duration) *ReconciliationUseCase {
	if timeout > 0 {
		uc.timeout = timeout
	}
	return uc
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	Repaired          bool
	LastChecked       time.Time
}

// ReconcileAccount compares the snapshot against the recomputed history sum.
// The row is locked for the duration of the check so the comparison never
// straddles a concurrent mutation.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	return uc.reconcile(ctx, accountID, false)
}

// RepairAccount rewrites a drifted snapshot with the recomputed balance and
// refreshes the cache after commit.
func (uc *ReconciliationUseCase) RepairAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	return uc.reconcile(ctx, accountID, true)
}

func (uc *ReconciliationUseCase) reconcile(ctx context.Context, accountID string, repair bool) (*ReconciliationResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	account, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	sum, err := uc.historyRepo.SumSigned(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	calculated := sum.Round(domain.BalanceScale)
	now := time.Now().UTC()

	result := &ReconciliationResult{
		AccountID:         accountID,
		RecordedBalance:   account.Balance,
		CalculatedBalance: calculated,
		Difference:        account.Balance.Sub(calculated),
		IsReconciled:      account.Balance.Equal(calculated),
		LastChecked:       now,
	}

	if result.IsReconciled {
		return result, nil
	}

	uc.metrics.ReconciliationDiscrepancy()
	uc.logger.Warn().
		Str("account_id", accountID).
		Str("recorded", account.Balance.StringFixed(domain.BalanceScale)).
		Str("calculated", calculated.StringFixed(domain.BalanceScale)).
		Msg("balance snapshot drifted from history")

	if !repair {
		return result, nil
	}

	// A negative fold cannot become a snapshot.
	balance, err := domain.Recalculate(sum)
	if err != nil {
		return nil, err
	}

	if err := uc.accountRepo.UpdateBalance(ctx, tx, accountID, balance, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if err := uc.cache.Set(ctx, accountID, balance); err != nil {
		uc.metrics.CacheError("set")
		uc.logger.Warn().Err(err).Str("account_id", accountID).Msg("balance cache write failed")
	}

	result.Repaired = true

	return result, nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	CheckedAt          time.Time
}

// GenerateReconciliationReport walks every account and reports discrepancies.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context, repair bool) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for offset := 0; ; offset += reconcileBatchSize {
		accounts, err := uc.accountRepo.List(ctx, reconcileBatchSize, offset)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.reconcile(ctx, account.ID, repair)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.ID, err)
			}

			report.TotalAccounts++
			if result.IsReconciled {
				report.ReconciledAccounts++
			} else {
				report.Discrepancies = append(report.Discrepancies, result)
			}
		}

		if len(accounts) < reconcileBatchSize {
			break
		}
	}

	return report, nil
}
