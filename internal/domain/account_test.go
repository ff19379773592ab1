package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

func TestAccount_ValidateDebit(t *testing.T) {
	tests := []struct {
		name    string
		account domain.Account
		amount  decimal.Decimal
		wantErr error
	}{
		{
			name:    "sufficient balance",
			account: domain.Account{Balance: decimal.NewFromInt(1000)},
			amount:  decimal.NewFromInt(300),
			wantErr: nil,
		},
		{
			name:    "exact balance",
			account: domain.Account{Balance: decimal.NewFromInt(100)},
			amount:  decimal.NewFromInt(100),
			wantErr: nil,
		},
		{
			name:    "insufficient balance",
			account: domain.Account{Balance: decimal.NewFromInt(100)},
			amount:  decimal.NewFromInt(300),
			wantErr: domain.ErrInsufficientBalance,
		},
		{
			name:    "overdraft allowed",
			account: domain.Account{Balance: decimal.NewFromInt(100), AllowOverdraft: true},
			amount:  decimal.NewFromInt(300),
			wantErr: nil,
		},
		{
			name:    "frozen account rejects debit regardless of balance",
			account: domain.Account{Balance: decimal.NewFromInt(1000), Frozen: true},
			amount:  decimal.NewFromInt(1),
			wantErr: domain.ErrAccountFrozen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.ValidateDebit(tt.amount)
			if err != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAccount_ValidateCredit(t *testing.T) {
	frozen := domain.Account{Balance: decimal.NewFromInt(100), Frozen: true}

	if err := frozen.ValidateCredit(decimal.NewFromInt(10), false); err != domain.ErrAccountFrozen {
		t.Errorf("expected ErrAccountFrozen, got %v", err)
	}

	if err := frozen.ValidateCredit(decimal.NewFromInt(10), true); err != nil {
		t.Errorf("expected credit allowed by policy, got %v", err)
	}

	active := domain.Account{Balance: decimal.NewFromInt(100)}
	if err := active.ValidateCredit(decimal.NewFromInt(10), false); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAccount_ApplyDebitCredit(t *testing.T) {
	a := domain.Account{Balance: decimal.NewFromInt(1000)}

	if got := a.ApplyDebit(decimal.NewFromInt(300)); !got.Equal(decimal.NewFromInt(700)) {
		t.Errorf("expected 700, got %s", got)
	}

	if got := a.ApplyCredit(decimal.NewFromInt(300)); !got.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("expected 1300, got %s", got)
	}
}

func TestMaskAccountID(t *testing.T) {
	if got := domain.MaskAccountID("ACC-123456"); got != "****3456" {
		t.Errorf("expected ****3456, got %s", got)
	}

	if got := domain.MaskAccountID("ab"); got != "****" {
		t.Errorf("expected ****, got %s", got)
	}
}
