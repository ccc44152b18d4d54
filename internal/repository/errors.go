package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrDuplicateAddress     = errors.New("address already assigned to a wallet")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvoiceNotPending    = errors.New("invoice is not pending")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicateTxHash      = errors.New("transaction hash already recorded")
	ErrInvoiceAlreadyLinked = errors.New("invoice already linked to a transaction")
)

// isDuplicateKey reports a unique constraint violation. TranslateError covers the
// configured dialects; the message check catches handles opened without it.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func normalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
