package dto

import (
	"time"

	"github.com/iho/balanceledger/internal/domain"
	"github.com/iho/balanceledger/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string    `json:"id"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Balance:   a.Balance.StringFixed(domain.BalanceScale),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts a list of accounts.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// BalanceResponse is returned by balance reads.
type BalanceResponse struct {
	ID      string `json:"id"`
	Balance string `json:"balance"`
}

// BalanceFromView converts a balance view to response.
func BalanceFromView(v *usecase.BalanceView) *BalanceResponse {
	return &BalanceResponse{
		ID:      v.AccountID,
		Balance: v.Balance.StringFixed(domain.BalanceScale),
	}
}

// OperationResponse is returned by debit and credit.
type OperationResponse struct {
	Balance string `json:"balance"`
}

// HistoryRecordResponse represents one history record.
type HistoryRecordResponse struct {
	ID         int64     `json:"id"`
	AccountID  string    `json:"account_id"`
	Action     string    `json:"action"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HistoryFromDomain converts history records.
func HistoryFromDomain(records []*domain.HistoryRecord) []*HistoryRecordResponse {
	result := make([]*HistoryRecordResponse, len(records))
	for i, r := range records {
		result[i] = &HistoryRecordResponse{
			ID:         r.ID,
			AccountID:  r.AccountID,
			Action:     string(r.Action),
			Amount:     r.Amount.StringFixed(domain.BalanceScale),
			OccurredAt: r.OccurredAt,
		}
	}
	return result
}

// ReconciliationResponse reports a snapshot check.
type ReconciliationResponse struct {
	AccountID         string    `json:"account_id"`
	RecordedBalance   string    `json:"recorded_balance"`
	CalculatedBalance string    `json:"calculated_balance"`
	Difference        string    `json:"difference"`
	IsReconciled      bool      `json:"is_reconciled"`
	Repaired          bool      `json:"repaired"`
	LastChecked       time.Time `json:"last_checked"`
}

// ReconciliationFromResult converts a reconciliation result.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:         r.AccountID,
		RecordedBalance:   r.RecordedBalance.StringFixed(domain.BalanceScale),
		CalculatedBalance: r.CalculatedBalance.StringFixed(domain.BalanceScale),
		Difference:        r.Difference.StringFixed(domain.BalanceScale),
		IsReconciled:      r.IsReconciled,
		Repaired:          r.Repaired,
		LastChecked:       r.LastChecked,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ListResponse wraps a paginated list.
type ListResponse[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
