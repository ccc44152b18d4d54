package repository

import (
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
)

type WalletEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	UserID       int64     `db:"user_id"       gorm:"column:user_id;not null;index"`
	Address      string    `db:"address"       gorm:"column:address;not null;uniqueIndex"`
	AddressIndex int       `db:"address_index" gorm:"column:address_index;not null;default:0"`
	HookID       *string   `db:"hook_id"       gorm:"column:hook_id"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `db:"updated_at"    gorm:"column:updated_at;not null"`
}

func (WalletEntity) TableName() string {
	return "wallets"
}

func toWalletEntity(m *model.Wallet) *WalletEntity {
	if m == nil {
		return nil
	}
	e := &WalletEntity{
		ID:           m.ID,
		UserID:       m.UserID,
		Address:      m.Address,
		AddressIndex: m.AddressIndex,
		CreatedAt:    m.CreatedAt,
	}
	if m.HookID != "" {
		e.HookID = &m.HookID
	}
	return e
}

func toWalletModel(e *WalletEntity) *model.Wallet {
	if e == nil {
		return nil
	}
	m := &model.Wallet{
		ID:           e.ID,
		UserID:       e.UserID,
		Address:      e.Address,
		AddressIndex: e.AddressIndex,
		CreatedAt:    e.CreatedAt,
	}
	if e.HookID != nil {
		m.HookID = *e.HookID
	}
	return m
}

func toWalletModels(entities []*WalletEntity) []*model.Wallet {
	if entities == nil {
		return nil
	}
	models := make([]*model.Wallet, len(entities))
	for i, e := range entities {
		models[i] = toWalletModel(e)
	}
	return models
}
