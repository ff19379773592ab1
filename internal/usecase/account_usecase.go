package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// AccountUseCase handles account lifecycle operations.
type AccountUseCase struct {
	accounts AccountStore
	idGen    IDGenerator
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accounts AccountStore, idGen IDGenerator) *AccountUseCase {
	return &AccountUseCase{accounts: accounts, idGen: idGen}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	ID             string
	Holder         string
	OpeningBalance decimal.Decimal
	AllowOverdraft bool
}

// CreateAccount registers a new account with its opening balance.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if input.ID == "" {
		input.ID = uc.idGen.Generate()
	}
	if err := domain.ValidateAccountID(input.ID); err != nil {
		return nil, err
	}
	if input.OpeningBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:             input.ID,
		Holder:         input.Holder,
		Balance:        input.OpeningBalance,
		OpeningBalance: input.OpeningBalance,
		AllowOverdraft: input.AllowOverdraft,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// GetAccount returns an account. The read is routed and may be served by
// a replica.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := domain.ValidateAccountID(id); err != nil {
		return nil, err
	}
	return uc.accounts.Get(ctx, id)
}

// SetFrozen flips the frozen flag on an account. Freezing takes effect
// on the next transfer that touches the account.
func (uc *AccountUseCase) SetFrozen(ctx context.Context, id string, frozen bool) error {
	if err := domain.ValidateAccountID(id); err != nil {
		return err
	}
	return uc.accounts.SetFrozen(ctx, id, frozen)
}

// ListAccounts returns accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.accounts.List(ctx, limit, offset)
}
