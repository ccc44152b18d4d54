package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimasrn/btc-invoice-gateway/internal/model"
)

// WalletEvents publishes and decodes wallet lifecycle events on a stream.
type WalletEvents struct {
	q *Queue
}

func NewWalletEvents(q *Queue) *WalletEvents {
	return &WalletEvents{q: q}
}

func (w *WalletEvents) PublishWalletCreated(ctx context.Context, wallet *model.Wallet) error {
	event := model.WalletEvent{
		Type:     model.WalletEventCreated,
		WalletID: wallet.ID,
		UserID:   wallet.UserID,
		Address:  wallet.Address,
	}
	_, err := w.q.PublishJSON(ctx, event, map[string]string{"type": event.Type})
	return err
}

func DecodeWalletEvent(msg *Message) (*model.WalletEvent, error) {
	var event model.WalletEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return nil, fmt.Errorf("decode wallet event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = msg.Metadata["type"]
	}
	return &event, nil
}
