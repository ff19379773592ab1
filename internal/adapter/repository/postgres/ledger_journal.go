package postgres

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
	"github.com/ZeelJavia/txnzero/internal/router"
	"github.com/ZeelJavia/txnzero/internal/usecase"
)

// LedgerJournal implements usecase.LedgerJournal on the append-only
// ledger_entries table. The unique constraint on (global_txn_id,
// account_id, direction) is the idempotency backstop.
type LedgerJournal struct {
	router *router.Router[*pgxpool.Pool]
}

// NewLedgerJournal creates a new LedgerJournal.
func NewLedgerJournal(r *router.Router[*pgxpool.Pool]) *LedgerJournal {
	return &LedgerJournal{router: r}
}

const entryColumns = `id, global_txn_id, account_id, amount, direction, counterparty, balance_after, risk_score, created_at`

// Append appends a ledger entry within a transaction. A duplicate leg
// returns ErrDuplicateEntry without writing anything.
func (j *LedgerJournal) Append(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	q := j.txQuerier(tx)

	var riskScore *pgtype.Numeric
	if entry.RiskScore != nil {
		n := decimalToNumeric(*entry.RiskScore)
		riskScore = &n
	}

	err := q.QueryRow(ctx, `
		INSERT INTO ledger_entries (global_txn_id, account_id, amount, direction, counterparty, balance_after, risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (global_txn_id, account_id, direction) DO NOTHING
		RETURNING id`,
		entry.GlobalTxnID,
		entry.AccountID,
		decimalToNumeric(entry.Amount),
		string(entry.Direction),
		entry.Counterparty,
		decimalToNumeric(entry.BalanceAfter),
		riskScore,
		timeToPgTimestamptz(entry.CreatedAt),
	).Scan(&entry.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrDuplicateEntry
	}

	return err
}

// Exists reports whether a leg is already on the books. Always answered
// by the primary.
func (j *LedgerJournal) Exists(ctx context.Context, txnID, accountID string, direction domain.Direction) (bool, error) {
	var exists bool
	err := j.router.Primary().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE global_txn_id = $1 AND account_id = $2 AND direction = $3
		)`,
		txnID, accountID, string(direction),
	).Scan(&exists)

	return exists, err
}

// HistoryFor returns entries for an account newest first, using keyset
// pagination on (created_at, id). The returned token resumes the scan
// regardless of rows appended in between.
func (j *LedgerJournal) HistoryFor(ctx context.Context, accountID string, query domain.StatementQuery) ([]*domain.LedgerEntry, string, error) {
	sql := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE account_id = $1`
	args := []any{accountID}

	if query.From != nil {
		args = append(args, timeToPgTimestamptz(*query.From))
		sql += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if query.To != nil {
		args = append(args, timeToPgTimestamptz(*query.To))
		sql += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	if query.PageToken != "" {
		createdAt, id, err := decodePageToken(query.PageToken)
		if err != nil {
			return nil, "", err
		}
		args = append(args, timeToPgTimestamptz(createdAt), id)
		sql += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, query.Limit+1)
	sql += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := j.router.Read(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, "", err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	if len(entries) <= query.Limit {
		return entries, "", nil
	}
	entries = entries[:query.Limit]
	last := entries[len(entries)-1]

	return entries, encodePageToken(last.CreatedAt, last.ID), nil
}

// SumFor sums signed entry amounts for an account, from the primary.
func (j *LedgerJournal) SumFor(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := j.router.Primary().QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1`,
		accountID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(sum), nil
}

func (j *LedgerJournal) txQuerier(tx usecase.Transaction) querier {
	if tx == nil {
		return j.router.Primary()
	}

	return tx.(*Tx).PgxTx()
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		entry           domain.LedgerEntry
		direction       string
		amount, balance pgtype.Numeric
		riskScore       pgtype.Numeric
		created         pgtype.Timestamptz
	)
	err := row.Scan(
		&entry.ID,
		&entry.GlobalTxnID,
		&entry.AccountID,
		&amount,
		&direction,
		&entry.Counterparty,
		&balance,
		&riskScore,
		&created,
	)
	if err != nil {
		return nil, err
	}

	entry.Direction = domain.Direction(direction)
	entry.Amount = numericToDecimal(amount)
	entry.BalanceAfter = numericToDecimal(balance)
	entry.CreatedAt = created.Time
	if riskScore.Valid {
		score := numericToDecimal(riskScore)
		entry.RiskScore = &score
	}

	return &entry, nil
}

func encodePageToken(createdAt time.Time, id int64) string {
	raw := strconv.FormatInt(createdAt.UnixNano(), 10) + "|" + strconv.FormatInt(id, 10)

	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodePageToken(token string) (time.Time, int64, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, 0, domain.ErrInvalidToken
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, domain.ErrInvalidToken
	}

	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, 0, domain.ErrInvalidToken
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, domain.ErrInvalidToken
	}

	return time.Unix(0, nanos).UTC(), id, nil
}
