package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iho/balanceledger/internal/domain"
	"github.com/iho/balanceledger/internal/usecase"
	"github.com/shopspring/decimal"
)

var errForeignTx = errors.New("transaction does not belong to this store")

// MemoryStore is an in-memory durable store with row locks and atomic
// commit. It implements TransactionManager, AccountRepository and
// HistoryRepository so the coordinator can be exercised under real
// concurrency without a database.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	history  []*domain.HistoryRecord
	seq      int64
	locks    map[string]chan struct{}
	reads    int

	// CommitErr, when set, is consulted by Commit; a non-nil result aborts
	// the unit as if the store had failed.
	CommitErr func() error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]domain.Account),
		locks:    make(map[string]chan struct{}),
	}
}

var (
	_ usecase.TransactionManager = (*MemoryStore)(nil)
	_ usecase.AccountRepository  = (*MemoryStore)(nil)
	_ usecase.HistoryRepository  = (*MemoryStore)(nil)
)

type memoryTx struct {
	store    *MemoryStore
	history  []*domain.HistoryRecord
	balances map[string]decimal.Decimal
	updated  map[string]time.Time
	held     []string
	done     bool
}

// Begin starts a new unit.
func (s *MemoryStore) Begin(ctx context.Context) (usecase.Transaction, error) {
	return &memoryTx{
		store:    s,
		balances: make(map[string]decimal.Decimal),
		updated:  make(map[string]time.Time),
	}, nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already closed")
	}

	s := t.store
	if s.CommitErr != nil {
		if err := s.CommitErr(); err != nil {
			t.release()
			return domain.NewTransactionError("commit", false, err)
		}
	}

	s.mu.Lock()
	s.history = append(s.history, t.history...)
	for id, balance := range t.balances {
		acc := s.accounts[id]
		acc.Balance = balance
		acc.UpdatedAt = t.updated[id]
		s.accounts[id] = acc
	}
	s.mu.Unlock()

	t.release()
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memoryTx) release() {
	t.done = true
	for _, id := range t.held {
		<-t.store.lockFor(id)
	}
	t.held = nil
}

func (s *MemoryStore) lockFor(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *MemoryStore) txFrom(tx usecase.Transaction) (*memoryTx, error) {
	mtx, ok := tx.(*memoryTx)
	if !ok || mtx.store != s {
		return nil, errForeignTx
	}
	return mtx, nil
}

// Create provisions an account.
func (s *MemoryStore) Create(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return domain.ErrAccountExists
	}
	s.accounts[account.ID] = *account
	return nil
}

// GetByID reads the committed snapshot.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

// GetByIDForUpdate blocks until the row lock is free or ctx ends.
func (s *MemoryStore) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	mtx, err := s.txFrom(tx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, exists := s.accounts[id]
	s.mu.Unlock()
	if !exists {
		return nil, domain.ErrAccountNotFound
	}

	select {
	case s.lockFor(id) <- struct{}{}:
		mtx.held = append(mtx.held, id)
	case <-ctx.Done():
		return nil, domain.NewTransactionError("lock account", true, ctx.Err())
	}

	s.mu.Lock()
	acc := s.accounts[id]
	s.mu.Unlock()
	return &acc, nil
}

// UpdateBalance stages a snapshot write.
func (s *MemoryStore) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	mtx, err := s.txFrom(tx)
	if err != nil {
		return err
	}
	mtx.balances[id] = balance
	mtx.updated[id] = updatedAt
	return nil
}

// List returns committed accounts ordered by id.
func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts := make([]*domain.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		accounts = append(accounts, &acc)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return page(accounts, limit, offset), nil
}

// Append stages a history record and assigns its sequence id.
func (s *MemoryStore) Append(ctx context.Context, tx usecase.Transaction, record *domain.HistoryRecord) (int64, error) {
	mtx, err := s.txFrom(tx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.seq++
	record.ID = s.seq
	s.mu.Unlock()
	mtx.history = append(mtx.history, record)
	return record.ID, nil
}

// SumSigned folds committed and staged history for the account.
func (s *MemoryStore) SumSigned(ctx context.Context, tx usecase.Transaction, accountID string) (decimal.Decimal, error) {
	mtx, err := s.txFrom(tx)
	if err != nil {
		return decimal.Zero, err
	}
	s.mu.Lock()
	committed := filterHistory(s.history, accountID)
	s.mu.Unlock()
	return domain.SumSigned(committed).Add(domain.SumSigned(filterHistory(mtx.history, accountID))), nil
}

// ListByAccount lists committed history newest first.
func (s *MemoryStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(newestFirst(filterHistory(s.history, accountID)), limit, offset), nil
}

// History returns the committed records of one account in commit order.
func (s *MemoryStore) History(accountID string) []*domain.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterHistory(s.history, accountID)
}

// Snapshot returns the committed balance of one account.
func (s *MemoryStore) Snapshot(accountID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].Balance
}

// SetSnapshot overwrites a committed balance, bypassing history.
func (s *MemoryStore) SetSnapshot(accountID string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[accountID]
	acc.Balance = balance
	s.accounts[accountID] = acc
}

// Reads reports how many unlocked snapshot reads were served.
func (s *MemoryStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
