package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// ReconcileConfig controls which transactions a sweep picks up.
type ReconcileConfig struct {
	// MinAge is how long a DEEMED_APPROVED transfer rests before a sweep
	// retries its credit.
	MinAge time.Duration
	// GiveUpAge is the point past which an unreachable credit is reversed
	// instead of retried.
	GiveUpAge time.Duration
	// StaleAge is how long an INITIATED record may sit before it is
	// expired or promoted.
	StaleAge time.Duration
	// BatchSize caps how many records one sweep examines per status.
	BatchSize int
}

func (c ReconcileConfig) withDefaults() ReconcileConfig {
	if c.MinAge <= 0 {
		c.MinAge = time.Minute
	}
	if c.GiveUpAge <= 0 {
		c.GiveUpAge = 24 * time.Hour
	}
	if c.StaleAge <= 0 {
		c.StaleAge = 10 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	return c
}

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	Examined  int       `json:"examined"`
	Completed int       `json:"completed"`
	Reversed  int       `json:"reversed"`
	Expired   int       `json:"expired"`
	Deferred  int       `json:"deferred"`
	Errors    int       `json:"errors"`
	SweptAt   time.Time `json:"swept_at"`
}

// ReconcileUseCase finishes transfers the hot path could not: it retries
// deemed-approved credits until they land or age out, and expires
// attempts that never got off the ground.
type ReconcileUseCase struct {
	transfers *TransferUseCase
	txns      TransactionRepository
	journal   LedgerJournal
	accounts  AccountStore
	cfg       ReconcileConfig
}

// NewReconcileUseCase creates a new ReconcileUseCase.
func NewReconcileUseCase(transfers *TransferUseCase, cfg ReconcileConfig) *ReconcileUseCase {
	return &ReconcileUseCase{
		transfers: transfers,
		txns:      transfers.txns,
		journal:   transfers.journal,
		accounts:  transfers.accounts,
		cfg:       cfg.withDefaults(),
	}
}

// Run performs one reconciliation sweep. It is safe to run concurrently
// with live traffic and with itself; every resolution happens under the
// same account locks and journal dedup the hot path uses.
func (uc *ReconcileUseCase) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{SweptAt: time.Now().UTC()}
	now := report.SweptAt

	stuck, err := uc.txns.ListByStatusBefore(ctx, domain.StatusDeemedApproved, now.Add(-uc.cfg.MinAge), uc.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list deemed approved: %w", err)
	}
	for _, txn := range stuck {
		report.Examined++
		status, err := uc.resolve(ctx, txn, now)
		uc.tally(report, status, err)
	}

	stale, err := uc.txns.ListByStatusBefore(ctx, domain.StatusInitiated, now.Add(-uc.cfg.StaleAge), uc.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	for _, txn := range stale {
		report.Examined++
		status, err := uc.expire(ctx, txn, now)
		uc.tally(report, status, err)
	}

	return report, nil
}

func (uc *ReconcileUseCase) tally(report *ReconcileReport, status domain.Status, err error) {
	switch {
	case err != nil:
		report.Errors++
	case status == domain.StatusSuccess:
		report.Completed++
	case status == domain.StatusReversed:
		report.Reversed++
	case status == domain.StatusFailed:
		report.Expired++
	default:
		report.Deferred++
	}
}

// resolve retries the credit for one deemed-approved transfer. The
// outcome is SUCCESS when the credit lands (or already had), REVERSED
// when the payee rejects it or the transfer aged past GiveUpAge, and
// DEEMED_APPROVED again when the payee side is still unreachable.
func (uc *ReconcileUseCase) resolve(ctx context.Context, txn *domain.Transaction, now time.Time) (domain.Status, error) {
	var status domain.Status
	err := uc.transfers.locker.WithLocks(ctx, []string{txn.PayerID, txn.PayeeID}, func(ctx context.Context) error {
		current, err := uc.txns.Get(ctx, txn.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusDeemedApproved {
			status = current.Status
			return nil
		}

		payer, err := uc.accounts.GetFresh(ctx, current.PayerID)
		if err != nil {
			return err
		}

		result, err := uc.transfers.creditLeg(ctx, current, payer.Balance)
		if err != nil {
			return err
		}
		status = result.Status

		if status == domain.StatusDeemedApproved && now.Sub(current.CreatedAt) > uc.cfg.GiveUpAge {
			result, err = uc.transfers.reverseLocked(ctx, current, MsgGiveUp)
			if err != nil {
				return err
			}
			status = result.Status
		}
		return nil
	})
	return status, err
}

// expire handles INITIATED records that outlived their attempt. If the
// debit leg is on the books the transfer is promoted and resolved like a
// deemed-approved one; otherwise it is failed without moving money.
func (uc *ReconcileUseCase) expire(ctx context.Context, txn *domain.Transaction, now time.Time) (domain.Status, error) {
	var status domain.Status
	err := uc.transfers.locker.WithLocks(ctx, []string{txn.PayerID, txn.PayeeID}, func(ctx context.Context) error {
		current, err := uc.txns.Get(ctx, txn.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusInitiated {
			status = current.Status
			return nil
		}

		debited, err := uc.journal.Exists(ctx, current.ID, current.PayerID, domain.DirectionDebit)
		if err != nil {
			return err
		}
		if debited {
			payer, err := uc.accounts.GetFresh(ctx, current.PayerID)
			if err != nil {
				return err
			}
			current.Status = domain.StatusDebited
			result, err := uc.transfers.creditLeg(ctx, current, payer.Balance)
			if err != nil {
				return err
			}
			status = result.Status
			return nil
		}

		if err := uc.transfers.finalize(ctx, current, domain.StatusFailed, MsgExpired,
			domain.NewPaymentFailed(uc.transfers.idGen.Generate(), current.ID, current.PayerID, current.Amount, MsgExpired, now)); err != nil {
			return err
		}
		status = domain.StatusFailed
		return nil
	})
	return status, err
}

// BalanceDrift is one account whose balance disagrees with its journal.
type BalanceDrift struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Expected  decimal.Decimal `json:"expected"`
}

// VerifyBalances audits every account against its journal: the live
// balance must equal the opening balance plus the sum of signed entries.
// It reports drift, it does not repair it.
func (uc *ReconcileUseCase) VerifyBalances(ctx context.Context) ([]BalanceDrift, error) {
	var drifts []BalanceDrift

	const pageSize = 200
	for offset := 0; ; offset += pageSize {
		accounts, err := uc.accounts.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			return drifts, nil
		}

		for _, account := range accounts {
			sum, err := uc.journal.SumFor(ctx, account.ID)
			if err != nil {
				return nil, err
			}
			expected := account.OpeningBalance.Add(sum)
			if !account.Balance.Equal(expected) {
				drifts = append(drifts, BalanceDrift{
					AccountID: account.ID,
					Balance:   account.Balance,
					Expected:  expected,
				})
			}
		}
	}
}
