package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the denormalized balance snapshot of one ledger account.
// The snapshot is always a fold over the account's history records.
type Account struct {
	ID        string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanDebit reports whether the snapshot covers amount.
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return !amount.GreaterThan(a.Balance)
}
