package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceScale is the number of fractional digits kept for every amount.
const BalanceScale = 2

// Recalculate turns the signed sum of an account's history into its canonical
// balance. A negative result means the history no longer covers the debits and
// the enclosing unit must be aborted.
func Recalculate(signedSum decimal.Decimal) (decimal.Decimal, error) {
	balance := signedSum.Round(BalanceScale)
	if balance.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeBalance, balance.StringFixed(BalanceScale))
	}
	return balance, nil
}

// SumSigned folds history records into credits minus debits. It is the
// in-process counterpart of the aggregate query run by the history store.
func SumSigned(records []*HistoryRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.Signed())
	}
	return sum
}
