package dto

import (
	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	ID             string          `json:"id,omitempty"`
	Holder         string          `json:"holder"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	AllowOverdraft bool            `json:"allow_overdraft"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		ID:             r.ID,
		Holder:         r.Holder,
		OpeningBalance: r.OpeningBalance,
		AllowOverdraft: r.AllowOverdraft,
	}
}

// TransferRequest represents a request to execute a transfer. TxnID is
// optional; omitting it forfeits replay protection across retries.
type TransferRequest struct {
	TxnID     string          `json:"txn_id,omitempty"`
	PayerID   string          `json:"payer_id"`
	PayeeID   string          `json:"payee_id"`
	Amount    decimal.Decimal `json:"amount"`
	Verdict   string          `json:"verdict,omitempty"`
	RiskScore decimal.Decimal `json:"risk_score,omitempty"`
}

// ToUseCaseInput converts to use case input. An absent verdict defaults
// to allow so callers without a fraud stage still work.
func (r *TransferRequest) ToUseCaseInput() usecase.TransferInput {
	verdict := domain.Verdict(r.Verdict)
	if r.Verdict == "" {
		verdict = domain.VerdictAllow
	}
	return usecase.TransferInput{
		TxnID:     r.TxnID,
		PayerID:   r.PayerID,
		PayeeID:   r.PayeeID,
		Amount:    r.Amount,
		Verdict:   verdict,
		RiskScore: r.RiskScore,
	}
}

// FreezeRequest represents a request to freeze or unfreeze an account.
type FreezeRequest struct {
	Frozen bool `json:"frozen"`
}
