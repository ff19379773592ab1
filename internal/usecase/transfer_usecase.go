package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ZeelJavia/txnzero/internal/domain"
)

// User-facing result messages. These travel to clients verbatim, so
// they never contain account IDs or internal detail.
const (
	MsgSuccess          = "Payment successful"
	MsgInsufficient     = "Insufficient balance"
	MsgPayerFrozen      = "Payer account is frozen"
	MsgPayeeFrozen      = "Payee account is frozen"
	MsgPayerNotFound    = "Payer account not found"
	MsgPayeeNotFound    = "Payee account not found"
	MsgBlockedFraud     = "Transaction blocked: high risk detected"
	MsgDeemedApproved   = "Payment pending: credit will be retried"
	MsgReversed         = "Payment reversed: amount refunded to payer"
	MsgVersionExhausted = "Payment failed: too many concurrent updates"
	MsgExpired          = "Payment failed: expired before processing"
	MsgGiveUp           = "credit unreachable past retry window"
)

// TransferConfig carries the orchestrator's retry and timeout knobs.
type TransferConfig struct {
	VersionRetries    int
	LockRetries       int
	LockBackoff       time.Duration
	DownstreamTimeout time.Duration
	AllowFrozenCredit bool
}

func (c TransferConfig) withDefaults() TransferConfig {
	if c.VersionRetries <= 0 {
		c.VersionRetries = DefaultVersionRetries
	}
	if c.LockRetries < 0 {
		c.LockRetries = DefaultLockRetries
	}
	if c.LockBackoff <= 0 {
		c.LockBackoff = DefaultLockBackoff
	}
	if c.DownstreamTimeout <= 0 {
		c.DownstreamTimeout = DefaultDownstreamTimeout
	}
	return c
}

// TransferMetrics receives orchestration telemetry. The prometheus
// implementation lives in infrastructure; a nil-safe no-op is used in
// tests that do not care.
type TransferMetrics interface {
	TransferCompleted(status domain.Status, duration time.Duration)
	VersionRetry()
	LockRetry()
}

type noopMetrics struct{}

func (noopMetrics) TransferCompleted(domain.Status, time.Duration) {}
func (noopMetrics) VersionRetry()                                  {}
func (noopMetrics) LockRetry()                                     {}

// TransferUseCase orchestrates the debit/credit state machine for a
// single payment.
type TransferUseCase struct {
	txManager TransactionManager
	accounts  AccountStore
	journal   LedgerJournal
	txns      TransactionRepository
	outbox    OutboxRepository
	locker    Locker
	idGen     IDGenerator
	metrics   TransferMetrics
	cfg       TransferConfig
}

// NewTransferUseCase creates a new TransferUseCase.
func NewTransferUseCase(
	txManager TransactionManager,
	accounts AccountStore,
	journal LedgerJournal,
	txns TransactionRepository,
	outbox OutboxRepository,
	locker Locker,
	idGen IDGenerator,
	metrics TransferMetrics,
	cfg TransferConfig,
) *TransferUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &TransferUseCase{
		txManager: txManager,
		accounts:  accounts,
		journal:   journal,
		txns:      txns,
		outbox:    outbox,
		locker:    locker,
		idGen:     idGen,
		metrics:   metrics,
		cfg:       cfg.withDefaults(),
	}
}

// TransferInput represents input for executing a transfer.
type TransferInput struct {
	TxnID     string
	PayerID   string
	PayeeID   string
	Amount    decimal.Decimal
	Verdict   domain.Verdict
	RiskScore decimal.Decimal
}

// TransferResult is what the caller gets back, including on replays.
type TransferResult struct {
	TxnID     string          `json:"txn_id"`
	Status    domain.Status   `json:"status"`
	Message   string          `json:"message"`
	RiskScore decimal.Decimal `json:"risk_score"`
	Replayed  bool            `json:"replayed,omitempty"`
}

// Execute runs a transfer through the state machine. Resubmitting a
// transaction ID that already reached a terminal state replays the
// recorded outcome instead of moving money again.
func (uc *TransferUseCase) Execute(ctx context.Context, input TransferInput) (*TransferResult, error) {
	started := time.Now()

	// 1. Validate before touching any state.
	if err := uc.validate(&input); err != nil {
		return nil, err
	}

	if input.TxnID == "" {
		input.TxnID = uc.idGen.Generate()
	}

	// 2. Cheap replay check before taking locks. The authoritative check
	// repeats under the lock; this one just short-circuits the common case.
	if result, ok, err := uc.replay(ctx, input.TxnID); err != nil {
		return nil, err
	} else if ok {
		return result, nil
	}

	// 3. Record the attempt. A concurrent duplicate loses the insert race
	// and is answered from the existing record under the lock.
	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:        input.TxnID,
		PayerID:   input.PayerID,
		PayeeID:   input.PayeeID,
		Amount:    input.Amount,
		Status:    domain.StatusInitiated,
		Verdict:   input.Verdict,
		RiskScore: input.RiskScore,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.txns.Create(ctx, txn); err != nil && !errors.Is(err, domain.ErrDuplicateEntry) {
		return nil, err
	}

	// 4. Fraud verdict gates everything else. Blocked transfers never
	// acquire account locks and move no money.
	if input.Verdict == domain.VerdictBlock {
		if err := uc.finalize(ctx, txn, domain.StatusBlockedFraud, MsgBlockedFraud,
			domain.NewPaymentFailed(uc.idGen.Generate(), txn.ID, txn.PayerID, txn.Amount, MsgBlockedFraud, now)); err != nil {
			return nil, err
		}
		uc.metrics.TransferCompleted(domain.StatusBlockedFraud, time.Since(started))
		return uc.result(txn), nil
	}

	// 5. Move money under both account locks, in canonical order.
	var result *TransferResult
	err := uc.withLockRetry(ctx, []string{input.PayerID, input.PayeeID}, func(ctx context.Context) error {
		var err error
		result, err = uc.executeLocked(ctx, txn)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.TransferCompleted(result.Status, time.Since(started))
	return result, nil
}

func (uc *TransferUseCase) validate(input *TransferInput) error {
	if err := domain.ValidateAccountID(input.PayerID); err != nil {
		return fmt.Errorf("payer: %w", err)
	}
	if err := domain.ValidateAccountID(input.PayeeID); err != nil {
		return fmt.Errorf("payee: %w", err)
	}
	if input.PayerID == input.PayeeID {
		return domain.ErrSameAccount
	}
	if err := domain.ValidateTxnID(input.TxnID); err != nil {
		return err
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return err
	}
	if input.Verdict == "" {
		input.Verdict = domain.VerdictAllow
	}
	if !input.Verdict.Valid() {
		return domain.ErrInvalidVerdict
	}
	return nil
}

// replay answers a resubmitted transaction from its recorded outcome.
// DEEMED_APPROVED is replayed too: the credit is owned by reconciliation
// at that point and a resubmit must not race it.
func (uc *TransferUseCase) replay(ctx context.Context, txnID string) (*TransferResult, bool, error) {
	txn, err := uc.txns.Get(ctx, txnID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !txn.Status.Terminal() && txn.Status != domain.StatusDeemedApproved {
		return nil, false, nil
	}
	result := uc.result(txn)
	result.Replayed = true
	return result, true, nil
}

func (uc *TransferUseCase) result(txn *domain.Transaction) *TransferResult {
	return &TransferResult{
		TxnID:     txn.ID,
		Status:    txn.Status,
		Message:   txn.Message,
		RiskScore: txn.RiskScore,
	}
}

// withLockRetry retries lock acquisition a bounded number of times, then
// surfaces ErrLockTimeout so the caller can resubmit. The transaction
// record stays INITIATED; reconciliation expires it if nobody returns.
func (uc *TransferUseCase) withLockRetry(ctx context.Context, ids []string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= uc.cfg.LockRetries; attempt++ {
		if attempt > 0 {
			uc.metrics.LockRetry()
			select {
			case <-time.After(uc.cfg.LockBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = uc.locker.WithLocks(ctx, ids, fn)
		if !errors.Is(err, domain.ErrLockTimeout) {
			return err
		}
	}
	return err
}

// executeLocked runs both legs while holding the payer and payee locks.
func (uc *TransferUseCase) executeLocked(ctx context.Context, txn *domain.Transaction) (*TransferResult, error) {
	// Authoritative idempotency check, now that no concurrent attempt can
	// interleave. A lost insert race in step 3 lands here too.
	current, err := uc.txns.Get(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	*txn = *current
	if txn.Status.Terminal() || txn.Status == domain.StatusDeemedApproved {
		result := uc.result(txn)
		result.Replayed = true
		return result, nil
	}

	debited, err := uc.journal.Exists(ctx, txn.ID, txn.PayerID, domain.DirectionDebit)
	if err != nil {
		return nil, err
	}

	// Debit leg. Skipped when a prior attempt already moved the funds out
	// and crashed before completing the credit; the payer balance then
	// comes from a fresh read so the sent event reports the real figure.
	var payerBalance decimal.Decimal
	if debited {
		payer, err := uc.accounts.GetFresh(ctx, txn.PayerID)
		if err != nil {
			return nil, err
		}
		payerBalance = payer.Balance
	} else {
		payerBalance, err = uc.debitLeg(ctx, txn)
		if err != nil {
			var failure *legFailure
			if errors.As(err, &failure) {
				if ferr := uc.finalize(ctx, txn, domain.StatusFailed, failure.message,
					domain.NewPaymentFailed(uc.idGen.Generate(), txn.ID, txn.PayerID, txn.Amount, failure.message, time.Now().UTC())); ferr != nil {
					return nil, ferr
				}
				return uc.result(txn), nil
			}
			return nil, err
		}
	}

	return uc.creditLeg(ctx, txn, payerBalance)
}

// legFailure is a terminal, non-retryable leg outcome with its
// user-facing message.
type legFailure struct {
	message string
	cause   error
}

func (f *legFailure) Error() string { return f.message }
func (f *legFailure) Unwrap() error { return f.cause }

// debitLeg withdraws from the payer with bounded optimistic retries.
// The balance mutation, journal entry, and status move commit in one
// storage transaction.
func (uc *TransferUseCase) debitLeg(ctx context.Context, txn *domain.Transaction) (decimal.Decimal, error) {
	for attempt := 0; attempt < uc.cfg.VersionRetries; attempt++ {
		if attempt > 0 {
			uc.metrics.VersionRetry()
		}

		payer, err := uc.accounts.GetFresh(ctx, txn.PayerID)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return decimal.Zero, &legFailure{message: MsgPayerNotFound, cause: err}
			}
			return decimal.Zero, err
		}
		if err := payer.ValidateDebit(txn.Amount); err != nil {
			switch {
			case errors.Is(err, domain.ErrAccountFrozen):
				return decimal.Zero, &legFailure{message: MsgPayerFrozen, cause: err}
			case errors.Is(err, domain.ErrInsufficientBalance):
				return decimal.Zero, &legFailure{message: MsgInsufficient, cause: err}
			}
			return decimal.Zero, err
		}

		balance, err := uc.applyLeg(ctx, txn, legParams{
			accountID:    txn.PayerID,
			delta:        txn.Amount.Neg(),
			version:      payer.Version,
			direction:    domain.DirectionDebit,
			counterparty: txn.PayeeID,
			status:       domain.StatusDebited,
		})
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return decimal.Zero, err
		}
		txn.Status = domain.StatusDebited
		return balance, nil
	}
	return decimal.Zero, &legFailure{message: MsgVersionExhausted, cause: domain.ErrVersionConflict}
}

// creditLeg deposits to the payee, or resolves the failure modes:
// confirmed rejections reverse the debit synchronously, unreachability
// parks the transfer as DEEMED_APPROVED for reconciliation.
func (uc *TransferUseCase) creditLeg(ctx context.Context, txn *domain.Transaction, payerBalance decimal.Decimal) (*TransferResult, error) {
	creditCtx, cancel := context.WithTimeout(ctx, uc.cfg.DownstreamTimeout)
	defer cancel()

	var payeeBalance decimal.Decimal
	var legErr error

	for attempt := 0; attempt < uc.cfg.VersionRetries; attempt++ {
		if attempt > 0 {
			uc.metrics.VersionRetry()
		}

		payee, err := uc.accounts.GetFresh(creditCtx, txn.PayeeID)
		if err != nil {
			legErr = err
			break
		}
		if err := payee.ValidateCredit(txn.Amount, uc.cfg.AllowFrozenCredit); err != nil {
			legErr = err
			break
		}

		payeeBalance, err = uc.applyLeg(creditCtx, txn, legParams{
			accountID:    txn.PayeeID,
			delta:        txn.Amount,
			version:      payee.Version,
			direction:    domain.DirectionCredit,
			counterparty: txn.PayerID,
			status:       domain.StatusCredited,
		})
		if errors.Is(err, domain.ErrVersionConflict) {
			legErr = err
			continue
		}
		legErr = err
		break
	}

	switch {
	case legErr == nil:
		txn.Status = domain.StatusCredited
		now := time.Now().UTC()
		if err := uc.finalize(ctx, txn, domain.StatusSuccess, MsgSuccess,
			domain.NewPaymentSent(uc.idGen.Generate(), txn.ID, txn.PayerID, domain.MaskAccountID(txn.PayeeID), txn.Amount, payerBalance, now),
			domain.NewPaymentReceived(uc.idGen.Generate(), txn.ID, txn.PayeeID, domain.MaskAccountID(txn.PayerID), txn.Amount, payeeBalance, now)); err != nil {
			return nil, err
		}
		return uc.result(txn), nil

	case errors.Is(legErr, domain.ErrAccountNotFound):
		return uc.reverseLocked(ctx, txn, MsgPayeeNotFound)

	case errors.Is(legErr, domain.ErrAccountFrozen):
		return uc.reverseLocked(ctx, txn, MsgPayeeFrozen)

	default:
		// Unreachable payee side: timeout, conflict exhaustion, or a
		// storage error whose effect is unknown. The debit stands and
		// reconciliation finishes the job either way.
		if err := uc.finalize(ctx, txn, domain.StatusDeemedApproved, MsgDeemedApproved); err != nil {
			return nil, err
		}
		return uc.result(txn), nil
	}
}

// reverseLocked issues the compensating credit back to the payer. It is
// keyed by the reversal transaction ID, so running it twice credits once.
// Callers must hold the payer lock.
func (uc *TransferUseCase) reverseLocked(ctx context.Context, txn *domain.Transaction, reason string) (*TransferResult, error) {
	reversalID := domain.ReversalTxnID(txn.ID)

	var payerBalance decimal.Decimal
	for attempt := 0; attempt < uc.cfg.VersionRetries; attempt++ {
		if attempt > 0 {
			uc.metrics.VersionRetry()
		}

		payer, err := uc.accounts.GetFresh(ctx, txn.PayerID)
		if err != nil {
			return nil, err
		}

		payerBalance, err = uc.applyLeg(ctx, txn, legParams{
			txnID:        reversalID,
			accountID:    txn.PayerID,
			delta:        txn.Amount,
			version:      payer.Version,
			direction:    domain.DirectionCredit,
			counterparty: txn.PayeeID,
			status:       domain.StatusReversed,
		})
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		message := MsgReversed + ": " + reason
		now := time.Now().UTC()
		if ferr := uc.finalize(ctx, txn, domain.StatusReversed, message,
			domain.NewPaymentFailed(uc.idGen.Generate(), txn.ID, txn.PayerID, txn.Amount, reason, now),
			domain.NewPaymentReversed(uc.idGen.Generate(), txn.ID, txn.PayerID, txn.Amount, payerBalance, now)); ferr != nil {
			return nil, ferr
		}
		return uc.result(txn), nil
	}
	return nil, fmt.Errorf("reverse %s: %w", txn.ID, domain.ErrVersionConflict)
}

type legParams struct {
	txnID        string
	accountID    string
	delta        decimal.Decimal
	version      int64
	direction    domain.Direction
	counterparty string
	status       domain.Status
}

// applyLeg commits one side of the movement: balance delta, journal
// entry, and status, atomically. A duplicate journal entry means a
// concurrent or prior attempt already applied this leg; the balance
// delta rolls back with it and the leg reports success.
func (uc *TransferUseCase) applyLeg(ctx context.Context, txn *domain.Transaction, p legParams) (decimal.Decimal, error) {
	if p.txnID == "" {
		p.txnID = txn.ID
	}
	if !txn.Status.CanTransition(p.status) {
		return decimal.Zero, fmt.Errorf("%s to %s: %w", txn.Status, p.status, domain.ErrInvalidTransition)
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	balance, _, err := uc.accounts.ApplyDelta(ctx, tx, p.accountID, p.delta, p.version)
	if err != nil {
		return decimal.Zero, err
	}

	entry := &domain.LedgerEntry{
		GlobalTxnID:  p.txnID,
		AccountID:    p.accountID,
		Amount:       p.delta,
		Direction:    p.direction,
		Counterparty: p.counterparty,
		BalanceAfter: balance,
		RiskScore:    &txn.RiskScore,
		CreatedAt:    time.Now().UTC(),
	}
	if err := uc.journal.Append(ctx, tx, entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateEntry) {
			// Leg already on the books from another attempt. Roll the
			// delta back and read the recorded balance outside the tx.
			if rerr := tx.Rollback(ctx); rerr != nil {
				return decimal.Zero, rerr
			}
			account, gerr := uc.accounts.GetFresh(ctx, p.accountID)
			if gerr != nil {
				return decimal.Zero, gerr
			}
			return account.Balance, nil
		}
		return decimal.Zero, err
	}

	if err := uc.txns.UpdateStatus(ctx, tx, txn.ID, p.status, "", time.Now().UTC()); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// finalize moves the transaction to its resting state and stages any
// notification events in the same storage transaction. The relay
// publishes them after commit, so observers only ever see outcomes that
// actually happened.
func (uc *TransferUseCase) finalize(ctx context.Context, txn *domain.Transaction, status domain.Status, message string, events ...*domain.NotificationEvent) error {
	if txn.Status != status && !txn.Status.CanTransition(status) {
		return fmt.Errorf("%s to %s: %w", txn.Status, status, domain.ErrInvalidTransition)
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.txns.UpdateStatus(ctx, tx, txn.ID, status, message, time.Now().UTC()); err != nil {
		return err
	}
	for _, event := range events {
		if err := uc.outbox.Create(ctx, tx, event); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	txn.Status = status
	txn.Message = message
	return nil
}
