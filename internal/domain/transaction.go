package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	// StatusInitiated is the entry state; no funds have moved.
	StatusInitiated Status = "INITIATED"
	// StatusDebited means the payer leg committed.
	StatusDebited Status = "DEBITED"
	// StatusCredited means the payee leg committed.
	StatusCredited Status = "CREDITED"
	// StatusSuccess is terminal; both ledger entries exist.
	StatusSuccess Status = "SUCCESS"
	// StatusFailed is terminal; no funds moved.
	StatusFailed Status = "FAILED"
	// StatusBlockedFraud is terminal; rejected pre-debit on the risk verdict.
	StatusBlockedFraud Status = "BLOCKED_FRAUD"
	// StatusDeemedApproved is a recoverable intermediate state: the debit
	// committed but the credit is unconfirmed. Reconciliation resolves it.
	StatusDeemedApproved Status = "DEEMED_APPROVED"
	// StatusReversed is terminal; a compensating credit restored the payer.
	StatusReversed Status = "REVERSED"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusBlockedFraud, StatusReversed:
		return true
	}

	return false
}

var allowedTransitions = map[Status][]Status{
	StatusInitiated:      {StatusDebited, StatusBlockedFraud, StatusFailed, StatusSuccess},
	StatusDebited:        {StatusCredited, StatusDeemedApproved, StatusReversed},
	StatusCredited:       {StatusSuccess},
	StatusDeemedApproved: {StatusCredited, StatusSuccess, StatusReversed},
}

// CanTransition reports whether moving from s to next is a legal
// state-machine step.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Verdict is the fraud subsystem's decision, consumed as an opaque input.
type Verdict string

const (
	VerdictAllow     Verdict = "allow"
	VerdictChallenge Verdict = "challenge"
	VerdictBlock     Verdict = "block"
)

// Valid reports whether v is a known verdict value.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictAllow, VerdictChallenge, VerdictBlock:
		return true
	}

	return false
}

// Transaction is the orchestrator's working record of one transfer.
// It is mutated only through state transitions.
type Transaction struct {
	ID        string
	PayerID   string
	PayeeID   string
	Amount    decimal.Decimal
	Status    Status
	Verdict   Verdict
	RiskScore decimal.Decimal
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates a transfer request before any state is created.
func (t *Transaction) Validate() error {
	if t.PayerID == t.PayeeID {
		return ErrSameAccount
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if !t.Verdict.Valid() {
		return ErrInvalidVerdict
	}

	return nil
}
