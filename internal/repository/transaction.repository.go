package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/pkg/pg"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create inserts a new transaction. A second row for the same hash fails with
// ErrDuplicateTxHash.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	if entity.Status == "" {
		entity.Status = string(model.TransactionStatusPending)
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateTxHash
		}
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) FindByHash(ctx context.Context, txHash string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Write(ctx).Where("tx_hash = ?", txHash).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// UpdateConfirmations stores the latest confirmation count as delivered.
// With promote set, a pending row becomes confirmed and gets confirmedAt;
// a confirmed row is never moved back.
func (r *TransactionRepository) UpdateConfirmations(ctx context.Context, id int64, confirmations int, promote bool, confirmedAt time.Time) (*model.Transaction, error) {
	updates := map[string]interface{}{
		"confirmations": confirmations,
		"updated_at":    confirmedAt,
	}
	if promote {
		pending := string(model.TransactionStatusPending)
		updates["status"] = gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", pending, string(model.TransactionStatusConfirmed))
		updates["confirmed_at"] = gorm.Expr("CASE WHEN status = ? THEN ? ELSE confirmed_at END", pending, confirmedAt)
	}

	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrTransactionNotFound
	}

	var entity TransactionEntity
	if err := r.Write(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// LinkInvoice points the transaction at the invoice it settled. An invoice can
// be referenced by one transaction only.
func (r *TransactionRepository) LinkInvoice(ctx context.Context, id, invoiceID int64) error {
	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND invoice_id IS NULL", id).
		Update("invoice_id", invoiceID)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return ErrInvoiceAlreadyLinked
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	if len(f.WalletIDs) == 0 {
		return []*model.Transaction{}, 0, nil
	}

	q := r.Read(ctx).Model(&TransactionEntity{}).Where("wallet_id IN ?", f.WalletIDs)
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := normalizeLimit(f.Limit, 20, 100)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toTransactionModels(entities), total, nil
}

// ListByWalletIDs returns every transaction of the wallets, used for balance aggregation.
func (r *TransactionRepository) ListByWalletIDs(ctx context.Context, walletIDs []int64) ([]*model.Transaction, error) {
	if len(walletIDs) == 0 {
		return nil, nil
	}
	var entities []*TransactionEntity
	if err := r.Read(ctx).Where("wallet_id IN ?", walletIDs).Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}
