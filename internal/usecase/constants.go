package usecase

import "time"

const (
	// DefaultVersionRetries bounds optimistic retries of a single leg
	// before the transfer fails terminally.
	DefaultVersionRetries = 3

	// DefaultLockRetries bounds local re-attempts after a lock timeout
	// before the error is surfaced to the caller as retryable.
	DefaultLockRetries = 2

	// DefaultLockBackoff is the pause between lock re-attempts.
	DefaultLockBackoff = 50 * time.Millisecond

	// DefaultDownstreamTimeout caps how long the credit leg waits on the
	// payee side before the transfer is deemed approved.
	DefaultDownstreamTimeout = 2 * time.Second

	// DefaultIdempotencyTTL is how long cached HTTP responses are kept.
	DefaultIdempotencyTTL = 24 * time.Hour

	// DefaultStatementLimit is the page size when the caller gives none.
	DefaultStatementLimit = 50
)
