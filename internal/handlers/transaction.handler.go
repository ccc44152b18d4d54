package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
)

type TransactionService interface {
	List(ctx context.Context, userID int64, status *model.TransactionStatus, limit, offset int) ([]*model.Transaction, int64, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.GET("/transactions", h.ListTransactions)
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type transactionResponse struct {
	*model.Transaction
	AmountBTC string `json:"amount_btc"`
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	userID, err := callerID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
		return
	}

	var status *model.TransactionStatus
	if v := query(ctx, "status"); v != "" {
		s := model.TransactionStatus(v)
		status = &s
	}
	limit, err := queryInt(ctx, "limit", 20)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(ctx, "offset", 0)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if limit < 1 || limit > 100 {
		writeError(ctx, xhttp.StatusBadRequest, "limit must be between 1 and 100")
		return
	}

	items, total, err := h.svc.List(xhttp.Context(ctx), userID, status, limit, offset)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	resp := listResponse[transactionResponse]{Items: make([]transactionResponse, 0, len(items)), Total: total, Limit: limit, Offset: offset}
	for _, tx := range items {
		resp.Items = append(resp.Items, transactionResponse{Transaction: tx, AmountBTC: blockchain.FormatBTC(tx.Amount)})
	}
	writeJSON(ctx, xhttp.StatusOK, resp)
}
