package handler

import (
	"context"
	"net/http"

	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// ReconcileService defines the behavior needed by ReconcileHandler.
type ReconcileService interface {
	Run(ctx context.Context) (*usecase.ReconcileReport, error)
	VerifyBalances(ctx context.Context) ([]usecase.BalanceDrift, error)
}

// ReconcileHandler triggers reconciliation sweeps and balance audits on
// demand. The background worker runs the same sweeps on an interval.
type ReconcileHandler struct {
	reconcileUC ReconcileService
}

// NewReconcileHandler creates a new ReconcileHandler.
func NewReconcileHandler(reconcileUC ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{reconcileUC: reconcileUC}
}

// Run executes one reconciliation sweep and returns the report.
func (h *ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcileUC.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reconciliation sweep failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// VerifyBalances audits every account against its journal and reports
// accounts whose balance drifted from the journal sum.
func (h *ReconcileHandler) VerifyBalances(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.reconcileUC.VerifyBalances(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "balance audit failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"consistent": len(drifts) == 0,
		"drifts":     drifts,
	})
}
