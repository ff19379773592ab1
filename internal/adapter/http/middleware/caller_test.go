package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZeelJavia/txnzero/internal/router"
)

func TestCaller_UsesHeader(t *testing.T) {
	var got string
	handler := Caller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = router.CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/alice@upi/balance", nil)
	req.Header.Set(CallerHeader, "client-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "client-42" {
		t.Fatalf("expected caller client-42, got %q", got)
	}
}

func TestCaller_FallsBackToRemoteIP(t *testing.T) {
	var got string
	handler := Caller(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = router.CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/alice@upi/balance", nil)
	req.RemoteAddr = "10.1.2.3:54321"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "10.1.2.3" {
		t.Fatalf("expected caller 10.1.2.3, got %q", got)
	}
}
