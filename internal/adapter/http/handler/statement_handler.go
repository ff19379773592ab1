package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ZeelJavia/txnzero/internal/adapter/http/dto"
	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// StatementService defines the behavior needed by StatementHandler.
type StatementService interface {
	Balance(ctx context.Context, accountID string) (*usecase.BalanceResult, error)
	Statement(ctx context.Context, accountID string, query domain.StatementQuery) ([]*domain.LedgerEntry, string, error)
}

// StatementHandler serves balance and ledger history reads.
type StatementHandler struct {
	statementUC StatementService
}

// NewStatementHandler creates a new StatementHandler.
func NewStatementHandler(statementUC StatementService) *StatementHandler {
	return &StatementHandler{statementUC: statementUC}
}

// Balance returns the current balance of an account.
func (h *StatementHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	balance, err := h.statementUC.Balance(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get balance", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, balance)
}

// Statement returns a page of ledger entries for an account, newest
// first. Pass the returned next_page_token back to resume.
func (h *StatementHandler) Statement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	query := domain.StatementQuery{
		From:      parseTimeQuery(r, "from"),
		To:        parseTimeQuery(r, "to"),
		Limit:     parseIntQuery(r, "limit", 0),
		PageToken: r.URL.Query().Get("page_token"),
	}

	entries, nextToken, err := h.statementUC.Statement(r.Context(), id, query)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get statement", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.StatementFromDomain(id, entries, nextToken))
}
