// Package repotest opens an in-memory ledger for tests of packages built on the repositories.
package repotest

import (
	"testing"

	"github.com/nimasrn/btc-invoice-gateway/internal/repository"
	"github.com/nimasrn/btc-invoice-gateway/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Store struct {
	*pg.DB
	Raw          *gorm.DB
	Users        *repository.UserRepository
	Wallets      *repository.WalletRepository
	Invoices     *repository.InvoiceRepository
	Transactions *repository.TransactionRepository
}

// NewSQLite migrates every ledger table into a private in-memory database.
// The pool is pinned to one connection so all goroutines see the same database.
func NewSQLite(t testing.TB) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), pg.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&repository.UserEntity{},
		&repository.WalletEntity{},
		&repository.InvoiceEntity{},
		&repository.TransactionEntity{},
	))

	pgDB := pg.New(db, db)
	return &Store{
		DB:           pgDB,
		Raw:          db,
		Users:        repository.NewUserRepository(pgDB),
		Wallets:      repository.NewWalletRepository(pgDB),
		Invoices:     repository.NewInvoiceRepository(pgDB),
		Transactions: repository.NewTransactionRepository(pgDB),
	}
}
