package repository

import (
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	ID            int64           `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	WalletID      int64           `db:"wallet_id"     gorm:"column:wallet_id;not null;index"`
	InvoiceID     *int64          `db:"invoice_id"    gorm:"column:invoice_id;uniqueIndex"`
	TxHash        string          `db:"tx_hash"       gorm:"column:tx_hash;not null;uniqueIndex"`
	Amount        decimal.Decimal `db:"amount"        gorm:"column:amount;type:numeric(18,8);not null"`
	Confirmations int             `db:"confirmations" gorm:"column:confirmations;not null;default:0"`
	Status        string          `db:"status"        gorm:"column:status;not null;default:pending;index"`
	BlockHeight   *int64          `db:"block_height"  gorm:"column:block_height"`
	ConfirmedAt   *time.Time      `db:"confirmed_at"  gorm:"column:confirmed_at"`
	CreatedAt     time.Time       `db:"created_at"    gorm:"column:created_at;not null;index"`
	UpdatedAt     time.Time       `db:"updated_at"    gorm:"column:updated_at;not null"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:            m.ID,
		WalletID:      m.WalletID,
		InvoiceID:     m.InvoiceID,
		TxHash:        m.TxHash,
		Amount:        m.Amount,
		Confirmations: m.Confirmations,
		Status:        string(m.Status),
		BlockHeight:   m.BlockHeight,
		ConfirmedAt:   m.ConfirmedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:            e.ID,
		WalletID:      e.WalletID,
		InvoiceID:     e.InvoiceID,
		TxHash:        e.TxHash,
		Amount:        e.Amount,
		Confirmations: e.Confirmations,
		Status:        model.TransactionStatus(e.Status),
		BlockHeight:   e.BlockHeight,
		ConfirmedAt:   e.ConfirmedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
