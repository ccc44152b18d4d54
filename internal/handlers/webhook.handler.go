package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/nimasrn/btc-invoice-gateway/internal/reconcile"
	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
)

type WebhookIngester interface {
	IngestPayload(ctx context.Context, raw []byte, signature string) (*reconcile.Outcome, error)
}

type WebhookHandler struct {
	engine WebhookIngester
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/blockchain", h.Blockchain)
}

func NewWebhookHandler(engine WebhookIngester) *WebhookHandler {
	return &WebhookHandler{engine: engine}
}

// Blockchain accepts payment notifications from the chain provider.
// Ignored and updated events answer 200 so the sender stops retrying.
func (h *WebhookHandler) Blockchain(ctx *xhttp.RequestCtx) {
	raw := append([]byte(nil), ctx.PostBody()...)
	signature := string(ctx.Request.Header.Peek(reconcile.HeaderSignature))

	out, err := h.engine.IngestPayload(xhttp.Context(ctx), raw, signature)
	switch {
	case err == nil:
		writeJSON(ctx, xhttp.StatusOK, out)
	case errors.Is(err, reconcile.ErrUnauthorized):
		writeError(ctx, xhttp.StatusUnauthorized, "Invalid webhook signature")
	case errors.Is(err, reconcile.ErrBadRequest):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	default:
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}
