package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction marks which side of a transaction leg an entry records.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// LedgerEntry is one immutable, signed movement of funds against one
// account for one transaction leg. Entries are never updated or deleted;
// at most one entry exists per (global txn id, account, direction).
type LedgerEntry struct {
	ID           int64
	GlobalTxnID  string
	AccountID    string
	Amount       decimal.Decimal
	Direction    Direction
	Counterparty string
	BalanceAfter decimal.Decimal
	RiskScore    *decimal.Decimal
	CreatedAt    time.Time
}

// ReversalTxnID derives the global txn id under which a compensating
// credit is journaled. Using a distinct id keeps the reversal deduplicated
// independently of the original credit leg.
func ReversalTxnID(txnID string) string {
	return txnID + "_REVERSAL"
}

// StatementQuery selects a page of ledger history for one account,
// ordered by creation time descending. PageToken restarts the sequence
// after the last entry of the previous page.
type StatementQuery struct {
	From      *time.Time
	To        *time.Time
	Limit     int
	PageToken string
}
