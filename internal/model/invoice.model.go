package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusExpired   InvoiceStatus = "expired"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusExpired, InvoiceStatusCancelled:
		return true
	}
	return false
}

type Invoice struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"user_id"`
	WalletID    int64               `json:"wallet_id"`
	BtcAddress  string              `json:"btc_address"`
	AmountBTC   decimal.Decimal     `json:"amount_btc"`
	AmountUSD   decimal.NullDecimal `json:"amount_usd"`
	Description string              `json:"description,omitempty"`
	Status      InvoiceStatus       `json:"status"`
	ExpiresAt   time.Time           `json:"expires_at"`
	PaidAt      *time.Time          `json:"paid_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// TransactionID is the settling transaction, filled on reads only.
	TransactionID *int64 `json:"transaction_id,omitempty"`
}

// InvoiceCreateRequest is the already-resolved input of invoice creation.
type InvoiceCreateRequest struct {
	UserID         int64
	AmountBTC      decimal.Decimal
	AmountUSD      decimal.NullDecimal
	Description    string
	ExpiresInHours int
}

func (p InvoiceCreateRequest) Validate() error {
	if p.UserID == 0 {
		return errors.New("user_id is required")
	}
	if !p.AmountBTC.IsPositive() {
		return errors.New("amount_btc must be positive")
	}
	if !p.AmountBTC.Equal(p.AmountBTC.Truncate(8)) {
		return errors.New("amount_btc supports at most 8 fractional digits")
	}
	if p.AmountUSD.Valid && p.AmountUSD.Decimal.IsNegative() {
		return errors.New("amount_usd must not be negative")
	}
	if p.ExpiresInHours < 0 {
		return errors.New("expires_in_hours must not be negative")
	}
	return nil
}

// InvoiceFilter controls List queries.
type InvoiceFilter struct {
	UserID int64
	Status *InvoiceStatus
	Limit  int // default 10, max 100
	Offset int
}
