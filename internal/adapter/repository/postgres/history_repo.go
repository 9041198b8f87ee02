package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/balanceledger/internal/domain"
	"github.com/iho/balanceledger/internal/infrastructure/postgres/generated"
	"github.com/iho/balanceledger/internal/usecase"
)

// HistoryRepository implements usecase.HistoryRepository on account_history.
type HistoryRepository struct {
	queries *generated.Queries
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db generated.DBTX) *HistoryRepository {
	return &HistoryRepository{
		queries: generated.New(db),
	}
}

// Append inserts one record inside tx and fills in record.ID.
func (r *HistoryRepository) Append(ctx context.Context, tx usecase.Transaction, record *domain.HistoryRecord) (int64, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return 0, err
	}

	id, err := r.queries.WithTx(pgxTx).AppendHistory(ctx, generated.AppendHistoryParams{
		AccountID:  record.AccountID,
		Action:     string(record.Action),
		Amount:     decimalToNumeric(record.Amount),
		OccurredAt: timeToPgTimestamptz(record.OccurredAt),
	})
	if err != nil {
		return 0, translateError("append history", err)
	}

	record.ID = id

	return id, nil
}

// SumSigned folds the history visible to tx, including its own uncommitted
// append.
func (r *HistoryRepository) SumSigned(ctx context.Context, tx usecase.Transaction, accountID string) (decimal.Decimal, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return decimal.Zero, err
	}

	total, err := r.queries.WithTx(pgxTx).SumSignedHistory(ctx, accountID)
	if err != nil {
		return decimal.Zero, translateError("sum history", err)
	}

	return numericToDecimal(total), nil
}

// ListByAccount lists committed records newest first.
func (r *HistoryRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.HistoryRecord, error) {
	rows, err := r.queries.ListHistoryByAccount(ctx, generated.ListHistoryByAccountParams{
		AccountID: accountID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		return nil, translateError("list history", err)
	}

	records := make([]*domain.HistoryRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &domain.HistoryRecord{
			ID:         row.ID,
			AccountID:  row.AccountID,
			Action:     domain.Action(row.Action),
			Amount:     numericToDecimal(row.Amount),
			OccurredAt: row.OccurredAt.Time,
		})
	}

	return records, nil
}
