package middleware

import (
	"net"
	"net/http"

	"github.com/ZeelJavia/txnzero/internal/router"
)

// CallerHeader identifies the logical caller for read-after-write
// pinning. Clients that transfer and immediately read their balance
// should send the same value on both requests.
const CallerHeader = "X-Caller-ID"

// Caller tags the request context with the caller identity. Falls back
// to the remote IP when the header is absent, which still pins the
// common single-client retry pattern.
func Caller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get(CallerHeader)
		if caller == "" {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				caller = host
			} else {
				caller = r.RemoteAddr
			}
		}

		next.ServeHTTP(w, r.WithContext(router.WithCaller(r.Context(), caller)))
	})
}
