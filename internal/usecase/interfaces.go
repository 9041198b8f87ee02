package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/balanceledger/internal/domain"
)

// AccountReader is the read path of the account store. It is the only store
// access the balance service has outside the transaction coordinator.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
}

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	AccountReader
	Create(ctx context.Context, account *domain.Account) error
	// GetByIDForUpdate blocks other lockers of the same row until tx ends.
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// HistoryRepository defines data access for the append-only history.
type HistoryRepository interface {
	// Append stores record and fills in its sequence id.
	Append(ctx context.Context, tx Transaction, record *domain.HistoryRecord) (int64, error)
	// SumSigned returns credits minus debits for the account, zero when empty.
	SumSigned(ctx context.Context, tx Transaction, accountID string) (decimal.Decimal, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.HistoryRecord, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// BalanceCache is the read-through projection of account balances. It is
// never consulted inside a transaction.
type BalanceCache interface {
	// Get returns the cached balance and whether it was present.
	Get(ctx context.Context, accountID string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, accountID string, balance decimal.Decimal) error
}

// OperationApplier applies one signed operation atomically.
type OperationApplier interface {
	ApplyOperation(ctx context.Context, accountID string, amount decimal.Decimal, action domain.Action) (decimal.Decimal, error)
}

// MetricsRecorder receives engine observations.
type MetricsRecorder interface {
	ObserveOperation(action domain.Action, result string, duration time.Duration)
	CacheHit()
	CacheMiss()
	CacheError(op string)
	ReconciliationDiscrepancy()
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// Retrier re-runs an operation while it fails with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(domain.Action, string, time.Duration) {}
func (nopRecorder) CacheHit()                                             {}
func (nopRecorder) CacheMiss()                                            {}
func (nopRecorder) CacheError(string)                                     {}
func (nopRecorder) ReconciliationDiscrepancy()                            {}
