package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a balance-holding account inside the switch. The balance and
// version are mutated only by the account store while a per-account lock
// is held; version increases by one on every committed mutation.
type Account struct {
	ID             string
	Holder         string
	Balance        decimal.Decimal
	OpeningBalance decimal.Decimal
	Frozen         bool
	AllowOverdraft bool
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateDebit checks whether the account can be debited by amount.
// Frozen accounts reject debits unconditionally.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Frozen {
		return ErrAccountFrozen
	}

	newBalance := a.Balance.Sub(amount)
	if !a.AllowOverdraft && newBalance.IsNegative() {
		return ErrInsufficientBalance
	}

	return nil
}

// ValidateCredit checks whether the account can be credited by amount.
// Whether frozen accounts may receive credits is a store policy.
func (a *Account) ValidateCredit(amount decimal.Decimal, allowFrozenCredit bool) error {
	if a.Frozen && !allowFrozenCredit {
		return ErrAccountFrozen
	}

	return nil
}

// ApplyDebit returns the balance after a debit of amount.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns the balance after a credit of amount.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}

// MaskAccountID masks an account identifier for logging, keeping only the
// last four characters.
func MaskAccountID(id string) string {
	if len(id) < 4 {
		return "****"
	}

	return "****" + id[len(id)-4:]
}
