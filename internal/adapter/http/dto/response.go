package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID             string          `json:"id"`
	Holder         string          `json:"holder"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Frozen         bool            `json:"frozen"`
	AllowOverdraft bool            `json:"allow_overdraft"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AccountFromDomain converts a domain account to a response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:             a.ID,
		Holder:         a.Holder,
		Balance:        a.Balance,
		OpeningBalance: a.OpeningBalance,
		Frozen:         a.Frozen,
		AllowOverdraft: a.AllowOverdraft,
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse is a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// TransactionResponse represents an orchestration record in API responses.
type TransactionResponse struct {
	ID        string          `json:"id"`
	PayerID   string          `json:"payer_id"`
	PayeeID   string          `json:"payee_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    domain.Status   `json:"status"`
	Verdict   domain.Verdict  `json:"verdict"`
	RiskScore decimal.Decimal `json:"risk_score"`
	Message   string          `json:"message"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:        t.ID,
		PayerID:   t.PayerID,
		PayeeID:   t.PayeeID,
		Amount:    t.Amount,
		Status:    t.Status,
		Verdict:   t.Verdict,
		RiskScore: t.RiskScore,
		Message:   t.Message,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID           int64            `json:"id"`
	GlobalTxnID  string           `json:"global_txn_id"`
	AccountID    string           `json:"account_id"`
	Amount       decimal.Decimal  `json:"amount"`
	Direction    domain.Direction `json:"direction"`
	Counterparty string           `json:"counterparty"`
	BalanceAfter decimal.Decimal  `json:"balance_after"`
	RiskScore    *decimal.Decimal `json:"risk_score,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// EntryFromDomain converts a domain ledger entry to a response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:           e.ID,
		GlobalTxnID:  e.GlobalTxnID,
		AccountID:    e.AccountID,
		Amount:       e.Amount,
		Direction:    e.Direction,
		Counterparty: e.Counterparty,
		BalanceAfter: e.BalanceAfter,
		RiskScore:    e.RiskScore,
		CreatedAt:    e.CreatedAt,
	}
}

// StatementResponse is a page of ledger history for one account.
type StatementResponse struct {
	AccountID     string           `json:"account_id"`
	Entries       []*EntryResponse `json:"entries"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// StatementFromDomain converts a statement page to a response.
func StatementFromDomain(accountID string, entries []*domain.LedgerEntry, nextToken string) *StatementResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return &StatementResponse{
		AccountID:     accountID,
		Entries:       result,
		NextPageToken: nextToken,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
