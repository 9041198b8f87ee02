package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/balanceledger/internal/usecase"
)

// CreateAccountRequest represents a request to open an account.
type CreateAccountRequest struct {
	// ID is optional; the server assigns one when empty.
	ID string `json:"id,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.OpenAccountInput {
	return usecase.OpenAccountInput{ID: r.ID}
}

// OperationRequest is the body of a debit or credit. Amount accepts a JSON
// number or a decimal string.
type OperationRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PaginationRequest represents pagination parameters.
type PaginationRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
