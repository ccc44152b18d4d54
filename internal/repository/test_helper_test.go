package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), pg.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&UserEntity{}, &WalletEntity{}, &InvoiceEntity{}, &TransactionEntity{})
	require.NoError(t, err)

	return &testDB{
		DB:    pg.New(db, db),
		rawDB: db,
	}
}

func seedWallet(t *testing.T, db *pg.DB, email, address string) (*model.User, *model.Wallet) {
	ctx := context.Background()
	user, err := NewUserRepository(db).Create(ctx, &model.User{Email: email, Name: "Test"})
	require.NoError(t, err)
	wallet, err := NewWalletRepository(db).Create(ctx, &model.Wallet{UserID: user.ID, Address: address})
	require.NoError(t, err)
	return user, wallet
}

func seedInvoice(t *testing.T, db *pg.DB, w *model.Wallet, amount string, createdAt time.Time) *model.Invoice {
	inv, err := NewInvoiceRepository(db).Create(context.Background(), &model.Invoice{
		UserID:     w.UserID,
		WalletID:   w.ID,
		BtcAddress: w.Address,
		AmountBTC:  decimal.RequireFromString(amount),
		Status:     model.InvoiceStatusPending,
		ExpiresAt:  createdAt.Add(24 * time.Hour),
		CreatedAt:  createdAt,
	})
	require.NoError(t, err)
	return inv
}

func ptr[T any](v T) *T {
	return &v
}
