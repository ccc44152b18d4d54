package repository

import (
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type InvoiceEntity struct {
	ID          int64               `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	UserID      int64               `db:"user_id"     gorm:"column:user_id;not null;index"`
	WalletID    int64               `db:"wallet_id"   gorm:"column:wallet_id;not null;index"`
	BtcAddress  string              `db:"btc_address" gorm:"column:btc_address;not null;index:idx_invoices_address_status,priority:1"`
	AmountBTC   decimal.Decimal     `db:"amount_btc"  gorm:"column:amount_btc;type:numeric(18,8);not null"`
	AmountUSD   decimal.NullDecimal `db:"amount_usd"  gorm:"column:amount_usd;type:numeric(10,2)"`
	Description string              `db:"description" gorm:"column:description;not null;default:''"`
	Status      string              `db:"status"      gorm:"column:status;not null;default:pending;index:idx_invoices_address_status,priority:2"`
	ExpiresAt   time.Time           `db:"expires_at"  gorm:"column:expires_at;not null"`
	PaidAt      *time.Time          `db:"paid_at"     gorm:"column:paid_at"`
	CreatedAt   time.Time           `db:"created_at"  gorm:"column:created_at;not null;index"`
	UpdatedAt   time.Time           `db:"updated_at"  gorm:"column:updated_at;not null"`
}

func (InvoiceEntity) TableName() string {
	return "invoices"
}

func toInvoiceEntity(m *model.Invoice) *InvoiceEntity {
	if m == nil {
		return nil
	}
	return &InvoiceEntity{
		ID:          m.ID,
		UserID:      m.UserID,
		WalletID:    m.WalletID,
		BtcAddress:  m.BtcAddress,
		AmountBTC:   m.AmountBTC,
		AmountUSD:   m.AmountUSD,
		Description: m.Description,
		Status:      string(m.Status),
		ExpiresAt:   m.ExpiresAt,
		PaidAt:      m.PaidAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toInvoiceModel(e *InvoiceEntity) *model.Invoice {
	if e == nil {
		return nil
	}
	return &model.Invoice{
		ID:          e.ID,
		UserID:      e.UserID,
		WalletID:    e.WalletID,
		BtcAddress:  e.BtcAddress,
		AmountBTC:   e.AmountBTC,
		AmountUSD:   e.AmountUSD,
		Description: e.Description,
		Status:      model.InvoiceStatus(e.Status),
		ExpiresAt:   e.ExpiresAt,
		PaidAt:      e.PaidAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toInvoiceModels(entities []*InvoiceEntity) []*model.Invoice {
	if entities == nil {
		return nil
	}
	models := make([]*model.Invoice, len(entities))
	for i, e := range entities {
		models[i] = toInvoiceModel(e)
	}
	return models
}
