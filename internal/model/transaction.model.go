package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusConfirmed, TransactionStatusFailed:
		return true
	}
	return false
}

// Transaction is an observed on-chain payment to a wallet. TxHash is unique.
type Transaction struct {
	ID            int64             `json:"id"`
	WalletID      int64             `json:"wallet_id"`
	InvoiceID     *int64            `json:"invoice_id,omitempty"`
	TxHash        string            `json:"tx_hash"`
	Amount        decimal.Decimal   `json:"amount"`
	Confirmations int               `json:"confirmations"`
	Status        TransactionStatus `json:"status"`
	BlockHeight   *int64            `json:"block_height,omitempty"`
	ConfirmedAt   *time.Time        `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TransactionFilter controls List queries.
type TransactionFilter struct {
	WalletIDs []int64
	Status    *TransactionStatus
	Limit     int // default 20, max 100
	Offset    int
}
