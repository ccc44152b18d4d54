package blockchain

import (
	"slices"
	"time"
)

// GeneratedAddress is the provider answer to an address generation request.
// Key material is returned by some providers; it is never persisted.
type GeneratedAddress struct {
	Address string `json:"address"`
	Public  string `json:"public,omitempty"`
	Private string `json:"private,omitempty"`
	Wif     string `json:"wif,omitempty"`
}

type TxOutput struct {
	Addresses []string `json:"addresses"`
	Value     int64    `json:"value"`
	Script    string   `json:"script,omitempty"`
}

type TxInput struct {
	Addresses   []string `json:"addresses"`
	OutputValue int64    `json:"output_value"`
}

type TxDetail struct {
	Hash          string     `json:"hash"`
	BlockHeight   int64      `json:"block_height"`
	Confirmations int        `json:"confirmations"`
	Fees          int64      `json:"fees"`
	Received      time.Time  `json:"received"`
	Confirmed     *time.Time `json:"confirmed,omitempty"`
	Inputs        []TxInput  `json:"inputs"`
	Outputs       []TxOutput `json:"outputs"`
}

// ReceivedBy sums, in satoshi, the outputs paying to address. Outputs with a
// non-positive value are ignored.
func (t *TxDetail) ReceivedBy(address string) int64 {
	if t == nil {
		return 0
	}
	var total int64
	for _, out := range t.Outputs {
		if out.Value <= 0 {
			continue
		}
		if slices.Contains(out.Addresses, address) {
			total += out.Value
		}
	}
	return total
}

type AddressBalance struct {
	Address            string `json:"address"`
	TotalReceived      int64  `json:"total_received"`
	TotalSent          int64  `json:"total_sent"`
	Balance            int64  `json:"balance"`
	UnconfirmedBalance int64  `json:"unconfirmed_balance"`
	FinalBalance       int64  `json:"final_balance"`
	NTx                int    `json:"n_tx"`
	UnconfirmedNTx     int    `json:"unconfirmed_n_tx"`
}

type addressFull struct {
	Address string      `json:"address"`
	Txs     []*TxDetail `json:"txs"`
}

const HookEventTxConfirmation = "tx-confirmation"

type Hook struct {
	ID      string `json:"id,omitempty"`
	Event   string `json:"event"`
	Address string `json:"address"`
	URL     string `json:"url"`
}
