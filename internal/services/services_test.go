package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository/repotest"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAddressGenerator struct {
	mock.Mock
}

func (m *MockAddressGenerator) GenerateAddress(ctx context.Context) (*blockchain.GeneratedAddress, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*blockchain.GeneratedAddress), args.Error(1)
}

type MockWalletEventPublisher struct {
	mock.Mock
}

func (m *MockWalletEventPublisher) PublishWalletCreated(ctx context.Context, wallet *model.Wallet) error {
	args := m.Called(ctx, wallet)
	return args.Error(0)
}

var errProviderDown = errors.New("provider down")

type serviceFixture struct {
	store     *repotest.Store
	addresses *MockAddressGenerator
	events    *MockWalletEventPublisher
	users     *UserService
	wallets   *WalletService
	invoices  *InvoiceService
	txs       *TransactionService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := repotest.NewSQLite(t)
	addresses := new(MockAddressGenerator)
	events := new(MockWalletEventPublisher)

	wallets := NewWalletService(store.Wallets, store.Transactions, store.Users, addresses, events, 1)
	return &serviceFixture{
		store:     store,
		addresses: addresses,
		events:    events,
		users:     NewUserService(store.Users),
		wallets:   wallets,
		invoices:  NewInvoiceService(store.Invoices, wallets, 24),
		txs:       NewTransactionService(store.Transactions, store.Wallets),
	}
}

func (f *serviceFixture) user(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), model.UserCreateRequest{Email: email, Name: "Test"})
	require.NoError(t, err)
	return u
}
