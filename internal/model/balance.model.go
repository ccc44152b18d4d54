package model

import "github.com/shopspring/decimal"

type AddressBalance struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

// Balance is the read model returned by the wallet balance endpoint.
type Balance struct {
	Total         decimal.Decimal  `json:"total"`
	Confirmed     decimal.Decimal  `json:"confirmed"`
	Pending       decimal.Decimal  `json:"pending"`
	TotalReceived decimal.Decimal  `json:"total_received"`
	Addresses     []AddressBalance `json:"addresses"`
}
