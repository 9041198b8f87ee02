package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/balanceledger/internal/adapter/http/dto"
	"github.com/iho/balanceledger/internal/domain"
	"github.com/iho/balanceledger/internal/usecase"
)

// HistoryService defines the behavior needed by HistoryHandler.
type HistoryService interface {
	ListByAccount(ctx context.Context, input usecase.ListHistoryInput) ([]*domain.HistoryRecord, error)
}

// HistoryHandler lists account history.
type HistoryHandler struct {
	historyUC HistoryService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(historyUC HistoryService) *HistoryHandler {
	return &HistoryHandler{historyUC: historyUC}
}

// ListByAccount lists history records of an account, newest first.
func (h *HistoryHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit, offset := domain.ValidatePagination(parseIntQuery(r, "limit", 0), parseIntQuery(r, "offset", 0))

	records, err := h.historyUC.ListByAccount(r.Context(), usecase.ListHistoryInput{
		AccountID: id,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeDomainError(w, err, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.HistoryRecordResponse]{
		Data:   dto.HistoryFromDomain(records),
		Limit:  limit,
		Offset: offset,
	})
}
