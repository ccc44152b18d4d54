package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("error notfound")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInvoiceNotPending = errors.New("invoice is not pending")
	ErrAddressProvider   = errors.New("address provider unavailable")
)

func invalid(reason error) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}
