package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ZeelJavia/txnzero/internal/adapter/http/dto"
	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	Execute(ctx context.Context, input usecase.TransferInput) (*usecase.TransferResult, error)
}

// TransactionReader looks up orchestration records.
type TransactionReader interface {
	GetTransaction(ctx context.Context, txnID string) (*domain.Transaction, error)
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	transferUC  TransferService
	statementUC TransactionReader
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferUC TransferService, statementUC TransactionReader) *TransferHandler {
	return &TransferHandler{transferUC: transferUC, statementUC: statementUC}
}

// Execute runs a transfer. Resubmitting a transaction ID returns the
// recorded outcome with Replayed set.
func (h *TransferHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.transferUC.Execute(r.Context(), req.ToUseCaseInput())
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to execute transfer", err.Error())

		return
	}

	// Declined transfers still return a full result; the status field
	// carries the outcome.
	writeJSON(w, http.StatusOK, result)
}

// Get retrieves a transaction record by its global ID.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	txn, err := h.statementUC.GetTransaction(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get transaction", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}
