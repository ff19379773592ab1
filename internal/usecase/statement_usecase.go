package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// StatementUseCase serves the read side: balances, entry history, and
// transaction lookups. All reads route through the replica unless the
// caller wrote recently.
type StatementUseCase struct {
	accounts AccountStore
	journal  LedgerJournal
	txns     TransactionRepository
}

// NewStatementUseCase creates a new StatementUseCase.
func NewStatementUseCase(accounts AccountStore, journal LedgerJournal, txns TransactionRepository) *StatementUseCase {
	return &StatementUseCase{accounts: accounts, journal: journal, txns: txns}
}

// BalanceResult is a point-in-time balance read.
type BalanceResult struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Frozen    bool            `json:"frozen"`
	Version   int64           `json:"version"`
}

// Balance returns the current balance of an account.
func (uc *StatementUseCase) Balance(ctx context.Context, accountID string) (*BalanceResult, error) {
	if err := domain.ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	account, err := uc.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &BalanceResult{
		AccountID: account.ID,
		Balance:   account.Balance,
		Frozen:    account.Frozen,
		Version:   account.Version,
	}, nil
}

// Statement returns a page of ledger entries for an account, newest
// first, with an opaque token to resume from.
func (uc *StatementUseCase) Statement(ctx context.Context, accountID string, query domain.StatementQuery) ([]*domain.LedgerEntry, string, error) {
	if err := domain.ValidateAccountID(accountID); err != nil {
		return nil, "", err
	}
	query.Limit, _ = domain.ValidatePagination(query.Limit, 0)

	if _, err := uc.accounts.Get(ctx, accountID); err != nil {
		return nil, "", err
	}

	return uc.journal.HistoryFor(ctx, accountID, query)
}

// GetTransaction returns the orchestration record for a transaction.
func (uc *StatementUseCase) GetTransaction(ctx context.Context, txnID string) (*domain.Transaction, error) {
	if txnID == "" {
		return nil, domain.ErrInvalidTxnID
	}
	if err := domain.ValidateTxnID(txnID); err != nil {
		return nil, err
	}
	return uc.txns.Get(ctx, txnID)
}
