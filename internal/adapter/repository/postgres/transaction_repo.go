package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/router"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// TransactionRepo implements usecase.TransactionRepository. All reads go
// to the primary: the orchestrator's replay decisions cannot tolerate
// replica lag.
type TransactionRepo struct {
	router *router.Router[*pgxpool.Pool]
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(r *router.Router[*pgxpool.Pool]) *TransactionRepo {
	return &TransactionRepo{router: r}
}

const txnColumns = `id, payer_id, payee_id, amount, status, verdict, risk_score, message, created_at, updated_at`

// Create records a transfer attempt. Losing the insert race to a
// concurrent duplicate returns ErrDuplicateEntry.
func (r *TransactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	tag, err := r.router.Write(ctx).Exec(ctx, `
		INSERT INTO transactions (`+txnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		txn.ID,
		txn.PayerID,
		txn.PayeeID,
		decimalToNumeric(txn.Amount),
		string(txn.Status),
		string(txn.Verdict),
		decimalToNumeric(txn.RiskScore),
		txn.Message,
		timeToPgTimestamptz(txn.CreatedAt),
		timeToPgTimestamptz(txn.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateEntry
	}

	return nil
}

// Get retrieves a transaction from the primary.
func (r *TransactionRepo) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.router.Primary().QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return txn, nil
}

// UpdateStatus moves a transaction to a new status. An empty message
// leaves the recorded one untouched.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.Status, message string, updatedAt time.Time) error {
	q := r.txQuerier(tx)

	tag, err := q.Exec(ctx, `
		UPDATE transactions
		SET status = $2,
		    message = CASE WHEN $3 = '' THEN message ELSE $3 END,
		    updated_at = $4
		WHERE id = $1`,
		id, string(status), message, timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// ListByStatusBefore returns transactions in the given status whose last
// update is older than the cutoff, oldest first.
func (r *TransactionRepo) ListByStatusBefore(ctx context.Context, status domain.Status, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	rows, err := r.router.Primary().Query(ctx, `
		SELECT `+txnColumns+` FROM transactions
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`,
		string(status), timeToPgTimestamptz(cutoff), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func (r *TransactionRepo) txQuerier(tx usecase.Transaction) querier {
	if tx == nil {
		return r.router.Primary()
	}

	return tx.(*Tx).PgxTx()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn               domain.Transaction
		status, verdict   string
		amount, riskScore pgtype.Numeric
		created, updated  pgtype.Timestamptz
	)
	err := row.Scan(
		&txn.ID,
		&txn.PayerID,
		&txn.PayeeID,
		&amount,
		&status,
		&verdict,
		&riskScore,
		&txn.Message,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}

	txn.Status = domain.Status(status)
	txn.Verdict = domain.Verdict(verdict)
	txn.Amount = numericToDecimal(amount)
	txn.RiskScore = numericToDecimal(riskScore)
	txn.CreatedAt = created.Time
	txn.UpdatedAt = updated.Time

	return &txn, nil
}
