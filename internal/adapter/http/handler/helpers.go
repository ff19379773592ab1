package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ZeelJavia/txnzero/internal/adapter/http/dto"
	"github.com/ZeelJavia/txnzero/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccountExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrAmountTooSmall),
		errors.Is(err, domain.ErrInvalidVerdict),
		errors.Is(err, domain.ErrInvalidAccountID),
		errors.Is(err, domain.ErrInvalidTxnID),
		errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrAccountFrozen):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseTimeQuery parses an RFC 3339 query parameter, nil if absent or
// malformed.
func parseTimeQuery(r *http.Request, key string) *time.Time {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}
