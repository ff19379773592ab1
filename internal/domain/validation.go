package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidAccountID = errors.New("invalid account identifier")
	ErrInvalidTxnID     = errors.New("invalid transaction identifier")
	ErrAmountTooLarge   = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall   = errors.New("amount below minimum allowed")
)

// Validation constants
const (
	MaxAccountIDLength = 64
	MaxTxnIDLength     = 64
	MaxTransferAmount  = "1000000000" // 1 billion
	MinTransferAmount  = "0.01"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9@._-]+$`)

// ValidateAccountID validates an account identifier.
func ValidateAccountID(id string) error {
	id = strings.TrimSpace(id)

	if id == "" || len(id) > MaxAccountIDLength {
		return ErrInvalidAccountID
	}

	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: contains forbidden characters", ErrInvalidAccountID)
	}

	return nil
}

// ValidateTxnID validates a caller-supplied global transaction id.
func ValidateTxnID(id string) error {
	if id == "" {
		return nil // orchestrator will generate one
	}

	if len(id) > MaxTxnIDLength || !idPattern.MatchString(id) {
		return ErrInvalidTxnID
	}

	return nil
}

// ValidateAmount validates a transfer amount against the engine bounds.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	minAmount, _ := decimal.NewFromString(MinTransferAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinTransferAmount)
	}

	maxAmount, _ := decimal.NewFromString(MaxTransferAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransferAmount)
	}

	return nil
}

// ValidatePagination clamps pagination parameters to sane bounds.
func ValidatePagination(limit, offset int) (int, int) {
	const maxPageSize = 1000
	const defaultPageSize = 50

	if limit <= 0 {
		limit = defaultPageSize
	}

	if limit > maxPageSize {
		limit = maxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
