package model

import "time"

// Wallet binds one receiving address to a user. The address never changes once assigned.
type Wallet struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Address      string    `json:"address"`
	AddressIndex int       `json:"address_index"`
	HookID       string    `json:"hook_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WalletEvent is published on the wallet event stream after a wallet is persisted.
type WalletEvent struct {
	Type     string `json:"type"`
	WalletID int64  `json:"wallet_id"`
	UserID   int64  `json:"user_id"`
	Address  string `json:"address"`
}

const WalletEventCreated = "wallet.created"
