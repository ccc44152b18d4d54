package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
)

type WalletService interface {
	Generate(ctx context.Context, userID int64) (*model.Wallet, bool, error)
	Balance(ctx context.Context, userID int64) (*model.Balance, error)
}

type WalletHandler struct {
	svc WalletService
}

func RegisterWalletRoutes(e *router.Group, h *WalletHandler) {
	e.POST("/wallets/generate", h.Generate)
	e.GET("/wallets/balance", h.Balance)
}

func NewWalletHandler(svc WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

type walletResponse struct {
	ID      int64  `json:"id"`
	Address string `json:"btc_address"`
	Created bool   `json:"created"`
}

type addressBalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type balanceResponse struct {
	Total         string                   `json:"total_btc"`
	Confirmed     string                   `json:"confirmed_btc"`
	Pending       string                   `json:"pending_btc"`
	TotalReceived string                   `json:"total_received_btc"`
	Addresses     []addressBalanceResponse `json:"addresses"`
}

func (h *WalletHandler) Generate(ctx *xhttp.RequestCtx) {
	userID, err := callerID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
		return
	}
	wallet, created, err := h.svc.Generate(xhttp.Context(ctx), userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	status := xhttp.StatusOK
	if created {
		status = xhttp.StatusCreated
	}
	writeJSON(ctx, status, walletResponse{ID: wallet.ID, Address: wallet.Address, Created: created})
}

func (h *WalletHandler) Balance(ctx *xhttp.RequestCtx) {
	userID, err := callerID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
		return
	}
	b, err := h.svc.Balance(xhttp.Context(ctx), userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	resp := balanceResponse{
		Total:         blockchain.FormatBTC(b.Total),
		Confirmed:     blockchain.FormatBTC(b.Confirmed),
		Pending:       blockchain.FormatBTC(b.Pending),
		TotalReceived: blockchain.FormatBTC(b.TotalReceived),
		Addresses:     make([]addressBalanceResponse, 0, len(b.Addresses)),
	}
	for _, a := range b.Addresses {
		resp.Addresses = append(resp.Addresses, addressBalanceResponse{Address: a.Address, Balance: blockchain.FormatBTC(a.Balance)})
	}
	writeJSON(ctx, xhttp.StatusOK, resp)
}
