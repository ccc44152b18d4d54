package processor

import (
	"context"
	"testing"

	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository/repotest"
	"github.com/nimasrn/btc-invoice-gateway/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedAddress string

func (a fixedAddress) GenerateAddress(context.Context) (*blockchain.GeneratedAddress, error) {
	return &blockchain.GeneratedAddress{Address: string(a)}, nil
}

// inlineConsumer hands each event straight to the registrar on a fresh context,
// the way a stream consumer on another connection would see it.
type inlineConsumer struct {
	t         *testing.T
	registrar *HookRegistrar
	errs      []error
}

func (c *inlineConsumer) PublishWalletCreated(_ context.Context, wallet *model.Wallet) error {
	msg := walletMessage(c.t, model.WalletEvent{
		Type:     model.WalletEventCreated,
		WalletID: wallet.ID,
		UserID:   wallet.UserID,
		Address:  wallet.Address,
	})
	c.errs = append(c.errs, c.registrar.Process(context.Background(), msg))
	return nil
}

func TestWalletCreation_RegistersHookForCommittedWallet(t *testing.T) {
	_, adapter := setupTestRedis(t)
	store := repotest.NewSQLite(t)
	provider := new(MockHookCreator)
	idem := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	consumer := &inlineConsumer{t: t, registrar: NewHookRegistrar(store.Wallets, provider, idem, testCallbackURL)}

	walletService := services.NewWalletService(store.Wallets, store.Transactions, store.Users, fixedAddress("tb1qfresh"), consumer, 1)
	invoiceService := services.NewInvoiceService(store.Invoices, walletService, 24)

	ctx := context.Background()
	user, err := store.Users.Create(ctx, &model.User{Email: "m@example.com", Name: "M"})
	require.NoError(t, err)

	provider.On("CreateWebhook", mock.Anything, "tb1qfresh", testCallbackURL).
		Return(&blockchain.Hook{ID: "hook-fresh"}, nil).Once()

	_, err = invoiceService.Create(ctx, model.InvoiceCreateRequest{UserID: user.ID, AmountBTC: decimal.RequireFromString("0.01")})
	require.NoError(t, err)

	require.Len(t, consumer.errs, 1)
	assert.NoError(t, consumer.errs[0])

	wallet, err := store.Wallets.FindByAddress(ctx, "tb1qfresh")
	require.NoError(t, err)
	assert.Equal(t, "hook-fresh", wallet.HookID)

	processed, err := idem.IsProcessed(ctx, "tb1qfresh")
	require.NoError(t, err)
	assert.True(t, processed)
	provider.AssertExpectations(t)
}
