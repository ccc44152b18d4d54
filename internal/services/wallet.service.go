package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	Create(ctx context.Context, wallet *model.Wallet) (*model.Wallet, error)
	FindByUserID(ctx context.Context, userID int64) (*model.Wallet, error)
	ListByUserID(ctx context.Context, userID int64) ([]*model.Wallet, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type WalletTransactionReader interface {
	ListByWalletIDs(ctx context.Context, walletIDs []int64) ([]*model.Transaction, error)
}

type AddressGenerator interface {
	GenerateAddress(ctx context.Context) (*blockchain.GeneratedAddress, error)
}

// WalletEventPublisher announces new wallets so a chain webhook can be registered for them.
type WalletEventPublisher interface {
	PublishWalletCreated(ctx context.Context, wallet *model.Wallet) error
}

type WalletService struct {
	wallets          WalletRepository
	transactions     WalletTransactionReader
	users            UserRepository
	addresses        AddressGenerator
	events           WalletEventPublisher
	minConfirmations int
}

func NewWalletService(
	wallets WalletRepository,
	transactions WalletTransactionReader,
	users UserRepository,
	addresses AddressGenerator,
	events WalletEventPublisher,
	minConfirmations int,
) *WalletService {
	return &WalletService{
		wallets:          wallets,
		transactions:     transactions,
		users:            users,
		addresses:        addresses,
		events:           events,
		minConfirmations: minConfirmations,
	}
}

// Generate returns the user's wallet, creating one with a fresh provider address
// when the user has none.
func (s *WalletService) Generate(ctx context.Context, userID int64) (*model.Wallet, bool, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	var wallet *model.Wallet
	var created bool
	err := s.wallets.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		wallet, created, err = s.ensureWallet(ctx, userID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.announce(ctx, wallet)
	}
	return wallet, created, nil
}

// announce publishes wallet.created for a committed wallet. A failed publish is
// logged and leaves the wallet without a provider hook.
func (s *WalletService) announce(ctx context.Context, wallet *model.Wallet) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishWalletCreated(ctx, wallet); err != nil {
		logger.Error("wallet event not published, hook registration pending",
			"wallet_id", wallet.ID, "address", wallet.Address, "error", err)
	}
}

// ensureWallet must run inside a transaction. The caller announces a created
// wallet after commit.
func (s *WalletService) ensureWallet(ctx context.Context, userID int64) (*model.Wallet, bool, error) {
	existing, err := s.wallets.FindByUserID(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrWalletNotFound) {
		return nil, false, fmt.Errorf("find wallet: %w", err)
	}

	generated, err := s.addresses.GenerateAddress(ctx)
	if err != nil {
		logger.Error("address generation failed", "user_id", userID, "error", err)
		return nil, false, fmt.Errorf("%w: %v", ErrAddressProvider, err)
	}

	wallet, err := s.wallets.Create(ctx, &model.Wallet{UserID: userID, Address: generated.Address})
	if err != nil {
		return nil, false, fmt.Errorf("create wallet: %w", err)
	}

	logger.Info("wallet created", "user_id", userID, "wallet_id", wallet.ID, "address", wallet.Address)
	return wallet, true, nil
}

// Balance sums recorded transactions over every wallet of the user.
// A transaction counts as confirmed once it reaches the minimum confirmations.
func (s *WalletService) Balance(ctx context.Context, userID int64) (*model.Balance, error) {
	wallets, err := s.wallets.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance := &model.Balance{
		Total:         decimal.Zero,
		Confirmed:     decimal.Zero,
		Pending:       decimal.Zero,
		TotalReceived: decimal.Zero,
		Addresses:     make([]model.AddressBalance, 0, len(wallets)),
	}
	if len(wallets) == 0 {
		return balance, nil
	}

	ids := make([]int64, 0, len(wallets))
	perWallet := make(map[int64]decimal.Decimal, len(wallets))
	for _, w := range wallets {
		ids = append(ids, w.ID)
		perWallet[w.ID] = decimal.Zero
	}

	txs, err := s.transactions.ListByWalletIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, tx := range txs {
		if tx.Status == model.TransactionStatusFailed {
			continue
		}
		balance.TotalReceived = balance.TotalReceived.Add(tx.Amount)
		if tx.Confirmations >= s.minConfirmations {
			balance.Confirmed = balance.Confirmed.Add(tx.Amount)
		} else {
			balance.Pending = balance.Pending.Add(tx.Amount)
		}
		perWallet[tx.WalletID] = perWallet[tx.WalletID].Add(tx.Amount)
	}
	balance.Total = balance.Confirmed.Add(balance.Pending)

	for _, w := range wallets {
		balance.Addresses = append(balance.Addresses, model.AddressBalance{
			Address: w.Address,
			Balance: perWallet[w.ID],
		})
	}
	return balance, nil
}
