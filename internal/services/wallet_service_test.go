package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWalletService_Generate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice@example.com")

	f.addresses.On("GenerateAddress", mock.Anything).
		Return(&blockchain.GeneratedAddress{Address: "tb1qalice"}, nil).Once()
	f.events.On("PublishWalletCreated", mock.Anything, mock.MatchedBy(func(w *model.Wallet) bool {
		return w.Address == "tb1qalice" && w.UserID == u.ID
	})).Return(nil).Once()

	w, created, err := f.wallets.Generate(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "tb1qalice", w.Address)

	// Second call returns the same wallet without touching the provider.
	again, created, err := f.wallets.Generate(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, w.ID, again.ID)

	f.addresses.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestWalletService_Generate_Failures(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		f := newServiceFixture(t)
		_, _, err := f.wallets.Generate(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNotFound)
		f.addresses.AssertNotCalled(t, "GenerateAddress", mock.Anything)
	})

	t.Run("provider down", func(t *testing.T) {
		f := newServiceFixture(t)
		u := f.user(t, "alice@example.com")
		f.addresses.On("GenerateAddress", mock.Anything).Return(nil, errProviderDown)

		_, _, err := f.wallets.Generate(context.Background(), u.ID)
		assert.ErrorIs(t, err, ErrAddressProvider)
	})

	t.Run("publish failure keeps the committed wallet", func(t *testing.T) {
		f := newServiceFixture(t)
		ctx := context.Background()
		u := f.user(t, "alice@example.com")
		f.addresses.On("GenerateAddress", mock.Anything).
			Return(&blockchain.GeneratedAddress{Address: "tb1qalice"}, nil)
		f.events.On("PublishWalletCreated", mock.Anything, mock.Anything).Return(assert.AnError)

		w, created, err := f.wallets.Generate(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, created)

		wallets, err := f.store.Wallets.ListByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, wallets, 1)
		assert.Equal(t, w.ID, wallets[0].ID)
	})
}

// committedLookup reports whether the published wallet is readable outside the
// creating transaction. The pool holds one connection, so a lookup issued while
// the transaction is open times out instead of succeeding.
func committedLookup(f *serviceFixture, seen *bool) func(mock.Arguments) {
	return func(args mock.Arguments) {
		w := args.Get(1).(*model.Wallet)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		got, err := f.store.Wallets.FindByAddress(ctx, w.Address)
		*seen = err == nil && got.ID == w.ID
	}
}

func TestWalletService_Generate_PublishesAfterCommit(t *testing.T) {
	f := newServiceFixture(t)
	u := f.user(t, "alice@example.com")

	var seen bool
	f.addresses.On("GenerateAddress", mock.Anything).
		Return(&blockchain.GeneratedAddress{Address: "tb1qalice"}, nil).Once()
	f.events.On("PublishWalletCreated", mock.Anything, mock.Anything).
		Run(committedLookup(f, &seen)).Return(nil).Once()

	_, _, err := f.wallets.Generate(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, seen, "wallet must be committed before the event is published")
	f.events.AssertExpectations(t)
}

func TestWalletService_Balance(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice@example.com")

	empty, err := f.wallets.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, empty.Total.IsZero())
	assert.Empty(t, empty.Addresses)

	w, err := f.store.Wallets.Create(ctx, &model.Wallet{UserID: u.ID, Address: "addr1"})
	require.NoError(t, err)

	add := func(hash, amount string, confirmations int, status model.TransactionStatus) {
		_, err := f.store.Transactions.Create(ctx, &model.Transaction{
			WalletID:      w.ID,
			TxHash:        hash,
			Amount:        decimal.RequireFromString(amount),
			Confirmations: confirmations,
			Status:        status,
			CreatedAt:     time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	add("tx1", "0.1", 3, model.TransactionStatusConfirmed)
	add("tx2", "0.02", 0, model.TransactionStatusPending)
	add("tx3", "0.00000001", 1, model.TransactionStatusConfirmed)
	add("tx4", "5", 0, model.TransactionStatusFailed)

	b, err := f.wallets.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.10000001", b.Confirmed.StringFixed(8))
	assert.Equal(t, "0.02000000", b.Pending.StringFixed(8))
	assert.Equal(t, "0.12000001", b.Total.StringFixed(8))
	assert.Equal(t, "0.12000001", b.TotalReceived.StringFixed(8))
	require.Len(t, b.Addresses, 1)
	assert.Equal(t, "addr1", b.Addresses[0].Address)
	assert.Equal(t, "0.12000001", b.Addresses[0].Balance.StringFixed(8))
}
