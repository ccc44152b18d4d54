package pg

import (
	"database/sql"

	"github.com/pkg/errors"

	_ "github.com/lib/pq"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending goose migration found in dir.
func Migrate(cfg Config, dir string) error {
	return runGoose(cfg, func(db *sql.DB) error { return goose.Up(db, dir) })
}

// Rollback reverts the most recently applied migration in dir.
func Rollback(cfg Config, dir string) error {
	return runGoose(cfg, func(db *sql.DB) error { return goose.Down(db, dir) })
}

// MigrationStatus logs the applied state of every migration in dir.
func MigrationStatus(cfg Config, dir string) error {
	return runGoose(cfg, func(db *sql.DB) error { return goose.Status(db, dir) })
}

func runGoose(cfg Config, fn func(db *sql.DB) error) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	if err = fn(db); err != nil {
		logger.Error("migration failed", "error", err)
		return err
	}
	return nil
}
