package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/router"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// querier is the subset of pgxpool.Pool and pgx.Tx the stores use.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AccountStore implements usecase.AccountStore. Reads route through the
// replica router; every mutation goes to the primary.
type AccountStore struct {
	router *router.Router[*pgxpool.Pool]
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(r *router.Router[*pgxpool.Pool]) *AccountStore {
	return &AccountStore{router: r}
}

const accountColumns = `id, holder, balance, opening_balance, frozen, allow_overdraft, version, created_at, updated_at`

// Create creates a new account.
func (s *AccountStore) Create(ctx context.Context, account *domain.Account) error {
	_, err := s.router.Write(ctx).Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID,
		account.Holder,
		decimalToNumeric(account.Balance),
		decimalToNumeric(account.OpeningBalance),
		account.Frozen,
		account.AllowOverdraft,
		account.Version,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return domain.ErrAccountExists
	}

	return err
}

// Get retrieves an account. Served by the replica unless the caller
// wrote recently.
func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	return s.get(ctx, s.router.Read(ctx), id)
}

// GetFresh retrieves an account from the primary.
func (s *AccountStore) GetFresh(ctx context.Context, id string) (*domain.Account, error) {
	return s.get(ctx, s.router.Primary(), id)
}

func (s *AccountStore) get(ctx context.Context, q querier, id string) (*domain.Account, error) {
	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

// ApplyDelta applies a signed balance change under an optimistic version
// check. The guard rejects the update in one statement when the version
// moved or the balance would go below zero without overdraft; a
// follow-up read classifies which one it was.
func (s *AccountStore) ApplyDelta(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, expectedVersion int64) (decimal.Decimal, int64, error) {
	q := s.txQuerier(tx)

	var balance pgtype.Numeric
	var version int64
	err := q.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $2,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $3
		  AND (balance + $2 >= 0 OR allow_overdraft)
		RETURNING balance, version`,
		id, decimalToNumeric(delta), expectedVersion,
	).Scan(&balance, &version)
	if err == nil {
		return numericToDecimal(balance), version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, 0, err
	}

	var currentVersion int64
	err = q.QueryRow(ctx, `SELECT version FROM accounts WHERE id = $1`, id).Scan(&currentVersion)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return decimal.Zero, 0, domain.ErrAccountNotFound
	case err != nil:
		return decimal.Zero, 0, err
	case currentVersion != expectedVersion:
		return decimal.Zero, 0, domain.ErrVersionConflict
	default:
		return decimal.Zero, 0, domain.ErrInsufficientBalance
	}
}

// SetFrozen flips the frozen flag. The version bump invalidates any
// in-flight optimistic update that read the old flag.
func (s *AccountStore) SetFrozen(ctx context.Context, id string, frozen bool) error {
	tag, err := s.router.Write(ctx).Exec(ctx, `
		UPDATE accounts
		SET frozen = $2, version = version + 1, updated_at = now()
		WHERE id = $1`,
		id, frozen,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// List lists accounts with pagination.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := s.router.Read(ctx).Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		ORDER BY id
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func (s *AccountStore) txQuerier(tx usecase.Transaction) querier {
	if tx == nil {
		return s.router.Primary()
	}

	return tx.(*Tx).PgxTx()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account          domain.Account
		balance, opening pgtype.Numeric
		created, updated pgtype.Timestamptz
	)
	err := row.Scan(
		&account.ID,
		&account.Holder,
		&balance,
		&opening,
		&account.Frozen,
		&account.AllowOverdraft,
		&account.Version,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}

	account.Balance = numericToDecimal(balance)
	account.OpeningBalance = numericToDecimal(opening)
	account.CreatedAt = created.Time
	account.UpdatedAt = updated.Time

	return &account, nil
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
