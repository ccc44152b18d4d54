package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
)

type TransactionLister interface {
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type WalletLister interface {
	ListByUserID(ctx context.Context, userID int64) ([]*model.Wallet, error)
}

type TransactionService struct {
	transactions TransactionLister
	wallets      WalletLister
}

func NewTransactionService(transactions TransactionLister, wallets WalletLister) *TransactionService {
	return &TransactionService{transactions: transactions, wallets: wallets}
}

// List returns the transactions received by any of the user's wallets, newest first.
func (s *TransactionService) List(ctx context.Context, userID int64, status *model.TransactionStatus, limit, offset int) ([]*model.Transaction, int64, error) {
	if status != nil && !status.Valid() {
		return nil, 0, invalid(fmt.Errorf("unknown status %q", *status))
	}

	wallets, err := s.wallets.ListByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if len(wallets) == 0 {
		return []*model.Transaction{}, 0, nil
	}

	ids := make([]int64, 0, len(wallets))
	for _, w := range wallets {
		ids = append(ids, w.ID)
	}
	return s.transactions.List(ctx, model.TransactionFilter{
		WalletIDs: ids,
		Status:    status,
		Limit:     limit,
		Offset:    offset,
	})
}
