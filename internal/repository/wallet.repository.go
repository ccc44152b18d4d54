package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/pkg/pg"
	"gorm.io/gorm"
)

type WalletRepository struct {
	*pg.DB
}

func NewWalletRepository(db *pg.DB) *WalletRepository {
	return &WalletRepository{
		db,
	}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *model.Wallet) (*model.Wallet, error) {
	entity := toWalletEntity(wallet)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateAddress
		}
		return nil, err
	}

	return toWalletModel(entity), nil
}

func (r *WalletRepository) FindByAddress(ctx context.Context, address string) (*model.Wallet, error) {
	var entity WalletEntity
	err := r.Read(ctx).Where("address = ?", address).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return toWalletModel(&entity), nil
}

// FindByUserID returns the user's first wallet.
func (r *WalletRepository) FindByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	var entity WalletEntity
	err := r.Read(ctx).Where("user_id = ?", userID).Order("id ASC").First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return toWalletModel(&entity), nil
}

func (r *WalletRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Wallet, error) {
	var entities []*WalletEntity
	if err := r.Read(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toWalletModels(entities), nil
}

func (r *WalletRepository) MarkHookRegistered(ctx context.Context, walletID int64, hookID string) error {
	result := r.Write(ctx).
		Model(&WalletEntity{}).
		Where("id = ?", walletID).
		Update("hook_id", hookID)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}
