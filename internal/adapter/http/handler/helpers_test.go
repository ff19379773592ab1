package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{domain.ErrTransactionNotFound, http.StatusNotFound},
		{domain.ErrAccountExists, http.StatusConflict},
		{domain.ErrSameAccount, http.StatusBadRequest},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrInvalidVerdict, http.StatusBadRequest},
		{domain.ErrInvalidToken, http.StatusBadRequest},
		{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{domain.ErrAccountFrozen, http.StatusUnprocessableEntity},
		{domain.ErrLockTimeout, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := mapDomainError(tt.err); got != tt.want {
			t.Errorf("mapDomainError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMapDomainError_Wrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), domain.ErrAccountNotFound)
	if got := mapDomainError(wrapped); got != http.StatusNotFound {
		t.Errorf("expected wrapped error to map to 404, got %d", got)
	}
}

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=7&bad=x", nil)

	if got := parseIntQuery(req, "limit", 20); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := parseIntQuery(req, "missing", 20); got != 20 {
		t.Errorf("expected default 20, got %d", got)
	}
	if got := parseIntQuery(req, "bad", 20); got != 20 {
		t.Errorf("expected default on malformed value, got %d", got)
	}
}

func TestParseTimeQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-08-01T00:00:00Z&bad=yesterday", nil)

	if got := parseTimeQuery(req, "from"); got == nil || got.Day() != 1 {
		t.Errorf("expected parsed time, got %v", got)
	}
	if got := parseTimeQuery(req, "missing"); got != nil {
		t.Errorf("expected nil for missing key, got %v", got)
	}
	if got := parseTimeQuery(req, "bad"); got != nil {
		t.Errorf("expected nil for malformed value, got %v", got)
	}
}
