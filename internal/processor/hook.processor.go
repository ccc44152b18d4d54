package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/internal/queue"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/prom"
)

// ErrWalletNotVisible means the event names an address the ledger does not hold.
var ErrWalletNotVisible = errors.New("wallet not found")

const (
	hookResultRegistered = "registered"
	hookResultSkipped    = "skipped"
	hookResultFailed     = "failed"
)

type HookWalletRepository interface {
	FindByAddress(ctx context.Context, address string) (*model.Wallet, error)
	MarkHookRegistered(ctx context.Context, walletID int64, hookID string) error
}

type HookCreator interface {
	CreateWebhook(ctx context.Context, address, callbackURL string) (*blockchain.Hook, error)
}

// HookRegistrar subscribes each newly created wallet address to provider
// confirmation callbacks pointing at the blockchain webhook endpoint.
type HookRegistrar struct {
	wallets     HookWalletRepository
	provider    HookCreator
	idempotency *IdempotencyService
	callbackURL string
}

func NewHookRegistrar(wallets HookWalletRepository, provider HookCreator, idempotency *IdempotencyService, callbackURL string) *HookRegistrar {
	return &HookRegistrar{
		wallets:     wallets,
		provider:    provider,
		idempotency: idempotency,
		callbackURL: callbackURL,
	}
}

func (p *HookRegistrar) GetType() string {
	return model.WalletEventCreated
}

// Process returns an error only when a redelivery may succeed.
func (p *HookRegistrar) Process(ctx context.Context, msg *queue.Message) error {
	event, err := queue.DecodeWalletEvent(msg)
	if err != nil {
		logger.Error("dropping undecodable wallet event", "message_id", msg.ID, "error", err)
		prom.IncHookRegistration(hookResultFailed)
		return nil
	}
	if event.Type != model.WalletEventCreated {
		logger.Debug("ignoring wallet event", "type", event.Type, "message_id", msg.ID)
		return nil
	}

	pc, err := p.idempotency.AcquireProcessingLock(ctx, event.Address)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		prom.IncHookRegistration(hookResultSkipped)
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		logger.Error("giving up hook registration", "address", event.Address, "error", err)
		prom.IncHookRegistration(hookResultFailed)
		return nil
	case err != nil:
		return err
	}

	if err := p.register(ctx, event); err != nil {
		prom.IncHookRegistration(hookResultFailed)
		if markErr := p.idempotency.MarkFailure(ctx, pc, err); markErr != nil {
			logger.Warn("failed to record hook failure", "address", event.Address, "error", markErr)
		}
		return err
	}

	if err := p.idempotency.MarkSuccess(ctx, pc); err != nil {
		logger.Warn("failed to record hook success", "address", event.Address, "error", err)
	}
	return nil
}

func (p *HookRegistrar) register(ctx context.Context, event *model.WalletEvent) error {
	wallet, err := p.wallets.FindByAddress(ctx, event.Address)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			// Retried until MaxRetries; a rolled back wallet never shows up.
			logger.Warn("wallet for event not visible yet", "address", event.Address, "wallet_id", event.WalletID)
			return fmt.Errorf("%w: %s", ErrWalletNotVisible, event.Address)
		}
		return fmt.Errorf("find wallet: %w", err)
	}
	if wallet.HookID != "" {
		prom.IncHookRegistration(hookResultSkipped)
		return nil
	}

	hook, err := p.provider.CreateWebhook(ctx, wallet.Address, p.callbackURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	if err := p.wallets.MarkHookRegistered(ctx, wallet.ID, hook.ID); err != nil {
		return fmt.Errorf("store hook id: %w", err)
	}

	prom.IncHookRegistration(hookResultRegistered)
	logger.Info("hook registered", "wallet_id", wallet.ID, "address", wallet.Address, "hook_id", hook.ID)
	return nil
}
