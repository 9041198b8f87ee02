package usecase

import (
	"context"

	"github.com/iho/balanceledger/internal/domain"
)

// HistoryUseCase exposes the append-only history of an account.
type HistoryUseCase struct {
	accounts    AccountReader
	historyRepo HistoryRepository
}

// NewHistoryUseCase creates a new HistoryUseCase.
func NewHistoryUseCase(accounts AccountReader, historyRepo HistoryRepository) *HistoryUseCase {
	return &HistoryUseCase{
		accounts:    accounts,
		historyRepo: historyRepo,
	}
}

// ListHistoryInput represents input for listing history records.
type ListHistoryInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// ListByAccount lists history records for an account, newest first.
func (uc *HistoryUseCase) ListByAccount(ctx context.Context, input ListHistoryInput) ([]*domain.HistoryRecord, error) {
	if _, err := uc.accounts.GetByID(ctx, input.AccountID); err != nil {
		return nil, err
	}

	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	return uc.historyRepo.ListByAccount(ctx, input.AccountID, limit, offset)
}
