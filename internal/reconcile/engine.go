package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/prom"
	"github.com/shopspring/decimal"
)

var (
	ErrUnauthorized = errors.New("invalid webhook signature")
	ErrBadRequest   = errors.New("bad webhook request")
)

type WalletStore interface {
	FindByAddress(ctx context.Context, address string) (*model.Wallet, error)
}

type InvoiceStore interface {
	FindPendingByAddress(ctx context.Context, address string) (*model.Invoice, error)
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) error
}

type TransactionStore interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	FindByHash(ctx context.Context, txHash string) (*model.Transaction, error)
	UpdateConfirmations(ctx context.Context, id int64, confirmations int, promote bool, at time.Time) (*model.Transaction, error)
	LinkInvoice(ctx context.Context, id, invoiceID int64) error
}

type TxRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionFetcher is the part of the chain provider the engine reads from.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, hash string) (*blockchain.TxDetail, error)
}

type Config struct {
	WebhookSecret    string
	MinConfirmations int
	Tolerance        decimal.Decimal
	ProviderTimeout  time.Duration
	LockTTL          time.Duration
}

type Deps struct {
	DB           TxRunner
	Wallets      WalletStore
	Invoices     InvoiceStore
	Transactions TransactionStore
	Provider     TransactionFetcher
	// Locker is optional; without it the unique tx hash is the only serialization point.
	Locker Locker
}

type Engine struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

func NewEngine(deps Deps, cfg Config) *Engine {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.MinConfirmations < 0 {
		cfg.MinConfirmations = 0
	}
	return &Engine{
		deps: deps,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// IngestPayload handles a raw webhook body and its optional signature header.
func (e *Engine) IngestPayload(ctx context.Context, raw []byte, signature string) (*Outcome, error) {
	return e.Ingest(ctx, DecodeEvent(raw, signature))
}

// Ingest reconciles one payment notification. The returned error wraps
// ErrUnauthorized or ErrBadRequest for rejected events; any other error means
// nothing was persisted and the sender should retry.
func (e *Engine) Ingest(ctx context.Context, ev Event) (*Outcome, error) {
	start := time.Now()
	out, err := e.ingest(ctx, ev)

	status := "error"
	switch {
	case err == nil:
		status = string(out.Status)
	case errors.Is(err, ErrUnauthorized):
		status = "unauthorized"
	case errors.Is(err, ErrBadRequest):
		status = "bad_request"
	}
	prom.AddWebhookOutcome(status, time.Since(start).Seconds())

	if err != nil {
		if status == "error" {
			logger.Error("webhook reconciliation failed", "address", ev.Address, "tx_hash", ev.TxHash, "error", err)
		} else {
			logger.Warn("webhook rejected", "address", ev.Address, "tx_hash", ev.TxHash, "outcome", status, "error", err)
		}
		return nil, err
	}
	logger.Info("webhook reconciled", "address", ev.Address, "tx_hash", ev.TxHash, "outcome", out.Status, "message", out.Message)
	return out, nil
}

func (e *Engine) ingest(ctx context.Context, ev Event) (*Outcome, error) {
	// An unset secret or a missing header skips the check.
	if e.cfg.WebhookSecret != "" && ev.Signature != "" {
		if !VerifySignature(ev.Payload, ev.Signature, e.cfg.WebhookSecret) {
			return nil, ErrUnauthorized
		}
	}

	if err := ev.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	wallet, err := e.deps.Wallets.FindByAddress(ctx, ev.Address)
	if errors.Is(err, repository.ErrWalletNotFound) {
		return Ignored(MessageAddressNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find wallet: %w", err)
	}

	if e.deps.Locker != nil {
		release, err := e.deps.Locker.Acquire(ctx, ev.TxHash, e.cfg.LockTTL)
		switch {
		case err == nil:
			defer release()
		case errors.Is(err, ErrLockNotAcquired):
			logger.Warn("reconcile lock busy, relying on unique tx hash", "tx_hash", ev.TxHash)
		default:
			logger.Warn("reconcile lock unavailable", "tx_hash", ev.TxHash, "error", err)
		}
	}

	existing, err := e.deps.Transactions.FindByHash(ctx, ev.TxHash)
	if err == nil {
		return e.refresh(ctx, existing, ev)
	}
	if !errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, fmt.Errorf("find transaction: %w", err)
	}

	detail := e.fetchDetail(ctx, ev.TxHash)
	amount := blockchain.SatoshiToBTC(detail.ReceivedBy(ev.Address))
	if !amount.IsPositive() {
		return Ignored(MessageNoPayment), nil
	}

	blockHeight := ev.BlockHeight
	if blockHeight == nil && detail != nil && detail.BlockHeight > 0 {
		h := detail.BlockHeight
		blockHeight = &h
	}

	txID, invoiceID, err := e.record(ctx, wallet, ev, amount, blockHeight)
	if errors.Is(err, repository.ErrDuplicateTxHash) {
		// A concurrent delivery recorded the hash first.
		existing, findErr := e.deps.Transactions.FindByHash(ctx, ev.TxHash)
		if findErr != nil {
			return nil, fmt.Errorf("re-read duplicate transaction: %w", findErr)
		}
		return e.refresh(ctx, existing, ev)
	}
	if err != nil {
		return nil, err
	}

	return Processed(txID, invoiceID), nil
}

// refresh applies a re-delivery: confirmations are last-write-wins and status
// only ever moves from pending to confirmed.
func (e *Engine) refresh(ctx context.Context, txn *model.Transaction, ev Event) (*Outcome, error) {
	promote := ev.Confirmations >= e.cfg.MinConfirmations
	updated, err := e.deps.Transactions.UpdateConfirmations(ctx, txn.ID, ev.Confirmations, promote, e.now())
	if err != nil {
		return nil, fmt.Errorf("update confirmations: %w", err)
	}
	if updated.Confirmations < txn.Confirmations {
		logger.Warn("confirmation count decreased", "tx_hash", txn.TxHash, "previous", txn.Confirmations, "current", updated.Confirmations)
	}
	return Updated(updated.ID), nil
}

// fetchDetail never fails: provider errors degrade to an empty transaction.
func (e *Engine) fetchDetail(ctx context.Context, hash string) *blockchain.TxDetail {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
	defer cancel()

	detail, err := e.deps.Provider.GetTransaction(ctx, hash)
	if err != nil {
		logger.Warn("chain provider lookup failed, treating amount as zero", "tx_hash", hash, "error", err)
		return nil
	}
	return detail
}

// record stores the transaction and settles the matching invoice atomically.
func (e *Engine) record(ctx context.Context, wallet *model.Wallet, ev Event, amount decimal.Decimal, blockHeight *int64) (int64, *int64, error) {
	now := e.now()
	txn := &model.Transaction{
		WalletID:      wallet.ID,
		TxHash:        ev.TxHash,
		Amount:        amount,
		Confirmations: ev.Confirmations,
		Status:        model.TransactionStatusPending,
		BlockHeight:   blockHeight,
	}
	if ev.Confirmations >= e.cfg.MinConfirmations {
		txn.Status = model.TransactionStatusConfirmed
		txn.ConfirmedAt = &now
	}

	var txID int64
	var settled *int64
	err := e.deps.DB.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := e.deps.Transactions.Create(ctx, txn)
		if err != nil {
			return err
		}
		txID = created.ID

		invoice, err := e.deps.Invoices.FindPendingByAddress(ctx, ev.Address)
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find pending invoice: %w", err)
		}

		if !WithinTolerance(invoice.AmountBTC, amount, e.cfg.Tolerance) {
			logger.Info("payment does not match invoice amount", "invoice_id", invoice.ID, "expected", invoice.AmountBTC.String(), "received", amount.String())
			return nil
		}

		if err := e.deps.Invoices.MarkPaid(ctx, invoice.ID, now); err != nil {
			if errors.Is(err, repository.ErrInvoiceNotPending) {
				logger.Info("invoice settled by another transaction", "invoice_id", invoice.ID, "tx_hash", ev.TxHash)
				return nil
			}
			return fmt.Errorf("mark invoice paid: %w", err)
		}
		if err := e.deps.Transactions.LinkInvoice(ctx, created.ID, invoice.ID); err != nil {
			return fmt.Errorf("link invoice: %w", err)
		}
		id := invoice.ID
		settled = &id
		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	if settled != nil {
		prom.IncInvoiceSettled()
		logger.Info("invoice paid", "invoice_id", *settled, "transaction_id", txID, "amount", amount.String())
	}
	return txID, settled, nil
}

// WithinTolerance reports |expected - received| <= tolerance.
func WithinTolerance(expected, received, tolerance decimal.Decimal) bool {
	return expected.Sub(received).Abs().LessThanOrEqual(tolerance)
}
