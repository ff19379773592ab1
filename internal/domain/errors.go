package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountFrozen       = errors.New("account is frozen")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrVersionConflict     = errors.New("account version conflict")
	ErrAccountExists       = errors.New("account already exists")

	// Ledger errors
	ErrDuplicateEntry = errors.New("ledger entry already exists")
	ErrInvalidToken   = errors.New("invalid page token")

	// Transfer errors
	ErrSameAccount           = errors.New("cannot transfer to same account")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidVerdict        = errors.New("unknown risk verdict")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrLockTimeout           = errors.New("lock acquisition timed out")
	ErrDownstreamUnreachable = errors.New("downstream account store unreachable")
)
