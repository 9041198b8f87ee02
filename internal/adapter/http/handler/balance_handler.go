package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/balanceledger/internal/adapter/http/dto"
	"github.com/iho/balanceledger/internal/usecase"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	GetBalance(ctx context.Context, accountID string) (*usecase.BalanceView, error)
	Debit(ctx context.Context, accountID string, amount decimal.Decimal) (*usecase.BalanceView, error)
	Credit(ctx context.Context, accountID string, amount decimal.Decimal) (*usecase.BalanceView, error)
}

type mutation func(ctx context.Context, accountID string, amount decimal.Decimal) (*usecase.BalanceView, error)

// BalanceHandler serves balance reads and mutations.
type BalanceHandler struct {
	balanceUC BalanceService
	retrier   usecase.Retrier
}

// NewBalanceHandler creates a new BalanceHandler. A nil retrier runs every
// mutation exactly once.
func NewBalanceHandler(balanceUC BalanceService, retrier usecase.Retrier) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC, retrier: retrier}
}

// Get returns the current balance of an account.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	view, err := h.balanceUC.GetBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromView(view))
}

// Debit removes the requested amount from an account.
func (h *BalanceHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.balanceUC.Debit, "failed to debit account")
}

// Credit adds the requested amount to an account.
func (h *BalanceHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.balanceUC.Credit, "failed to credit account")
}

func (h *BalanceHandler) mutate(w http.ResponseWriter, r *http.Request, apply mutation, message string) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	var req dto.OperationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var view *usecase.BalanceView
	run := func() error {
		var err error
		view, err = apply(r.Context(), id, req.Amount)
		return err
	}

	var err error
	if h.retrier != nil {
		err = h.retrier.Retry(r.Context(), run)
	} else {
		err = run()
	}
	if err != nil {
		writeDomainError(w, err, message)
		return
	}

	writeJSON(w, http.StatusCreated, dto.OperationResponse{
		Balance: dto.BalanceFromView(view).Balance,
	})
}
