package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		address       string
		hash          string
		confirmations int
		blockHeight   *int64
		valid         bool
	}{
		{
			name:    "hash field",
			body:    `{"address":"addr1","hash":"abc","confirmations":2,"block_height":100}`,
			address: "addr1", hash: "abc", confirmations: 2, blockHeight: ptr[int64](100), valid: true,
		},
		{
			name:    "tx_hash fallback",
			body:    `{"address":"addr1","tx_hash":"def"}`,
			address: "addr1", hash: "def", valid: true,
		},
		{
			name:    "hash wins over tx_hash",
			body:    `{"address":"addr1","hash":"abc","tx_hash":"def"}`,
			address: "addr1", hash: "abc", valid: true,
		},
		{
			name:    "negative block height dropped",
			body:    `{"address":"addr1","hash":"abc","block_height":-1}`,
			address: "addr1", hash: "abc", valid: true,
		},
		{
			name:    "integral float confirmations",
			body:    `{"address":"addr1","hash":"abc","confirmations":2.0,"block_height":1.2e2}`,
			address: "addr1", hash: "abc", confirmations: 2, blockHeight: ptr[int64](120), valid: true,
		},
		{
			name:    "null confirmations",
			body:    `{"address":"addr1","hash":"abc","confirmations":null}`,
			address: "addr1", hash: "abc", valid: true,
		},
		{
			name:    "fractional confirmations",
			body:    `{"address":"addr1","hash":"abc","confirmations":1.5}`,
			address: "addr1",
		},
		{
			name:    "confirmations out of range",
			body:    `{"address":"addr1","hash":"abc","confirmations":1e12}`,
			address: "addr1",
		},
		{
			name:    "blank hash",
			body:    `{"address":"addr1","hash":"  "}`,
			address: "addr1",
		},
		{
			name: "not an object",
			body: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := DecodeEvent([]byte(tt.body), "sig")
			assert.Equal(t, "sig", ev.Signature)
			assert.Equal(t, []byte(tt.body), ev.Payload)
			if !tt.valid {
				assert.Error(t, ev.validate())
				return
			}
			require.NoError(t, ev.validate())
			assert.Equal(t, tt.address, ev.Address)
			assert.Equal(t, tt.hash, ev.TxHash)
			assert.Equal(t, tt.confirmations, ev.Confirmations)
			assert.Equal(t, tt.blockHeight, ev.BlockHeight)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
