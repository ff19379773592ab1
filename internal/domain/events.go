package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types delivered to downstream consumers. Delivery is
// at-least-once; consumers deduplicate on (transaction id, event type).
const (
	EventPaymentReceived = "payment.received"
	EventPaymentSent     = "payment.sent"
	EventPaymentFailed   = "payment.failed"
	EventPaymentReversed = "payment.reversed"
)

// NotificationEvent is an outcome event for one recipient. Target is the
// partition key: all events for one target preserve relative order.
// Immutable after creation.
type NotificationEvent struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	TransactionID string          `json:"transaction_id"`
	Target        string          `json:"target"`
	Counterparty  string          `json:"counterparty,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Message       string          `json:"message"`
}

// NewPaymentSent builds the sender-side event for a completed transfer.
func NewPaymentSent(id, txnID, payer, payee string, amount, balanceAfter decimal.Decimal, at time.Time) *NotificationEvent {
	return &NotificationEvent{
		ID:            id,
		Type:          EventPaymentSent,
		TransactionID: txnID,
		Target:        payer,
		Counterparty:  payee,
		Amount:        amount,
		BalanceAfter:  balanceAfter,
		OccurredAt:    at,
		Message:       fmt.Sprintf("Sent %s to %s", amount.StringFixed(2), payee),
	}
}

// NewPaymentReceived builds the recipient-side event for a completed transfer.
func NewPaymentReceived(id, txnID, payee, payer string, amount, balanceAfter decimal.Decimal, at time.Time) *NotificationEvent {
	return &NotificationEvent{
		ID:            id,
		Type:          EventPaymentReceived,
		TransactionID: txnID,
		Target:        payee,
		Counterparty:  payer,
		Amount:        amount,
		BalanceAfter:  balanceAfter,
		OccurredAt:    at,
		Message:       fmt.Sprintf("Received %s from %s", amount.StringFixed(2), payer),
	}
}

// NewPaymentFailed builds the payer-side event for a failed or blocked transfer.
func NewPaymentFailed(id, txnID, payer string, amount decimal.Decimal, reason string, at time.Time) *NotificationEvent {
	return &NotificationEvent{
		ID:            id,
		Type:          EventPaymentFailed,
		TransactionID: txnID,
		Target:        payer,
		Amount:        amount,
		OccurredAt:    at,
		Message:       "Payment failed: " + reason,
	}
}

// NewPaymentReversed builds the payer-side event for a refunded transfer.
func NewPaymentReversed(id, txnID, payer string, amount, balanceAfter decimal.Decimal, at time.Time) *NotificationEvent {
	return &NotificationEvent{
		ID:            id,
		Type:          EventPaymentReversed,
		TransactionID: txnID,
		Target:        payer,
		Amount:        amount,
		BalanceAfter:  balanceAfter,
		OccurredAt:    at,
		Message:       fmt.Sprintf("Refunded %s for reversed payment", amount.StringFixed(2)),
	}
}
