package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the direction of a history record.
type Action string

const (
	ActionDebit  Action = "debit"
	ActionCredit Action = "credit"
)

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	return a == ActionDebit || a == ActionCredit
}

// ParseAction converts a raw string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", ErrInvalidAction
	}
	return a, nil
}

// HistoryRecord is one immutable entry of the append-only ledger.
type HistoryRecord struct {
	OccurredAt time.Time
	ID         int64
	AccountID  string
	Action     Action
	Amount     decimal.Decimal
}

// Signed returns the amount with the sign implied by the action.
func (h *HistoryRecord) Signed() decimal.Decimal {
	if h.Action == ActionDebit {
		return h.Amount.Neg()
	}
	return h.Amount
}
