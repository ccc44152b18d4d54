package services

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
	"github.com/skip2/go-qrcode"
)

const (
	DefaultExpiryHours = 24
	DefaultQRSize      = 256
	maxQRSize          = 1024
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) (*model.Invoice, error)
	GetByIDForUser(ctx context.Context, id, userID int64) (*model.Invoice, error)
	List(ctx context.Context, f model.InvoiceFilter) ([]*model.Invoice, int64, error)
	Cancel(ctx context.Context, id, userID int64) error
}

type InvoiceService struct {
	invoices    InvoiceRepository
	wallets     *WalletService
	expiryHours int
	now         func() time.Time
}

func NewInvoiceService(invoices InvoiceRepository, wallets *WalletService, expiryHours int) *InvoiceService {
	if expiryHours <= 0 {
		expiryHours = DefaultExpiryHours
	}
	return &InvoiceService{
		invoices:    invoices,
		wallets:     wallets,
		expiryHours: expiryHours,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending invoice on the user's wallet address. The wallet is
// created in the same database transaction when the user has none yet.
func (s *InvoiceService) Create(ctx context.Context, p model.InvoiceCreateRequest) (*model.Invoice, error) {
	if err := p.Validate(); err != nil {
		return nil, invalid(err)
	}
	if _, err := s.wallets.users.GetByID(ctx, p.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	hours := p.ExpiresInHours
	if hours == 0 {
		hours = s.expiryHours
	}

	var created *model.Invoice
	var wallet *model.Wallet
	var walletCreated bool
	err := s.wallets.wallets.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		wallet, walletCreated, err = s.wallets.ensureWallet(ctx, p.UserID)
		if err != nil {
			return err
		}

		now := s.now()
		created, err = s.invoices.Create(ctx, &model.Invoice{
			UserID:      p.UserID,
			WalletID:    wallet.ID,
			BtcAddress:  wallet.Address,
			AmountBTC:   p.AmountBTC,
			AmountUSD:   p.AmountUSD,
			Description: p.Description,
			Status:      model.InvoiceStatusPending,
			ExpiresAt:   now.Add(time.Duration(hours) * time.Hour),
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if walletCreated {
		s.wallets.announce(ctx, wallet)
	}

	prom.IncInvoiceCreated()
	logger.Info("invoice created", "invoice_id", created.ID, "user_id", created.UserID, "address", created.BtcAddress, "amount_btc", blockchain.FormatBTC(created.AmountBTC))
	return created, nil
}

func (s *InvoiceService) Get(ctx context.Context, id, userID int64) (*model.Invoice, error) {
	invoice, err := s.invoices.GetByIDForUser(ctx, id, userID)
	if errors.Is(err, repository.ErrInvoiceNotFound) {
		return nil, ErrNotFound
	}
	return invoice, err
}

func (s *InvoiceService) List(ctx context.Context, f model.InvoiceFilter) ([]*model.Invoice, int64, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, invalid(fmt.Errorf("unknown status %q", *f.Status))
	}
	return s.invoices.List(ctx, f)
}

// Cancel moves a pending invoice to cancelled and returns its new state.
func (s *InvoiceService) Cancel(ctx context.Context, id, userID int64) (*model.Invoice, error) {
	err := s.invoices.Cancel(ctx, id, userID)
	switch {
	case errors.Is(err, repository.ErrInvoiceNotFound):
		return nil, ErrNotFound
	case errors.Is(err, repository.ErrInvoiceNotPending):
		return nil, ErrInvoiceNotPending
	case err != nil:
		return nil, err
	}
	logger.Info("invoice cancelled", "invoice_id", id, "user_id", userID)
	return s.Get(ctx, id, userID)
}

// QRPayload is the BIP21 payment URI shown to the payer.
func QRPayload(invoice *model.Invoice) string {
	return fmt.Sprintf("bitcoin:%s?amount=%s", invoice.BtcAddress, blockchain.FormatBTC(invoice.AmountBTC))
}

// QRCodePNG renders the payment URI; size is clamped to a sane range.
func QRCodePNG(invoice *model.Invoice, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	return qrcode.Encode(QRPayload(invoice), qrcode.Medium, size)
}
