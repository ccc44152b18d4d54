package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionService_List(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")

	txs, total, err := f.txs.List(ctx, alice.ID, nil, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, txs)

	aw, err := f.store.Wallets.Create(ctx, &model.Wallet{UserID: alice.ID, Address: "addr-a"})
	require.NoError(t, err)
	bw, err := f.store.Wallets.Create(ctx, &model.Wallet{UserID: bob.ID, Address: "addr-b"})
	require.NoError(t, err)

	base := time.Now().UTC()
	for i, hash := range []string{"a1", "a2", "a3"} {
		status := model.TransactionStatusPending
		if i == 0 {
			status = model.TransactionStatusConfirmed
		}
		_, err := f.store.Transactions.Create(ctx, &model.Transaction{
			WalletID: aw.ID, TxHash: hash, Amount: decimal.RequireFromString("0.1"),
			Status: status, CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	_, err = f.store.Transactions.Create(ctx, &model.Transaction{
		WalletID: bw.ID, TxHash: "b1", Amount: decimal.RequireFromString("1"), Status: model.TransactionStatusPending,
	})
	require.NoError(t, err)

	txs, total, err = f.txs.List(ctx, alice.ID, nil, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, txs, 2)
	assert.Equal(t, "a3", txs[0].TxHash)

	confirmed := model.TransactionStatusConfirmed
	txs, total, err = f.txs.List(ctx, alice.ID, &confirmed, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "a1", txs[0].TxHash)

	bogus := model.TransactionStatus("bogus")
	_, _, err = f.txs.List(ctx, alice.ID, &bogus, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
