package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/model"
	"github.com/nimasrn/btc-invoice-gateway/internal/services"
	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
	"github.com/shopspring/decimal"
)

type InvoiceService interface {
	Create(ctx context.Context, p model.InvoiceCreateRequest) (*model.Invoice, error)
	Get(ctx context.Context, id, userID int64) (*model.Invoice, error)
	List(ctx context.Context, f model.InvoiceFilter) ([]*model.Invoice, int64, error)
	Cancel(ctx context.Context, id, userID int64) (*model.Invoice, error)
}

type InvoiceHandler struct {
	svc InvoiceService
	// usdRate is the fixed BTC price used when only amount_usd is given.
	usdRate decimal.Decimal
}

func RegisterInvoiceRoutes(e *router.Group, h *InvoiceHandler) {
	e.POST("/invoices", h.CreateInvoice)
	e.GET("/invoices", h.ListInvoices)
	e.GET("/invoices/{id}", h.GetInvoice)
	e.POST("/invoices/{id}/cancel", h.CancelInvoice)
	e.GET("/invoices/{id}/qr.png", h.GetInvoiceQR)
}

func NewInvoiceHandler(svc InvoiceService, usdRate decimal.Decimal) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, usdRate: usdRate}
}

type createInvoiceRequest struct {
	AmountBTC      decimal.NullDecimal `json:"amount_btc"`
	AmountUSD      decimal.NullDecimal `json:"amount_usd"`
	Description    string              `json:"description"`
	ExpiresInHours int                 `json:"expires_in_hours"`
}

type invoiceResponse struct {
	ID            int64               `json:"id"`
	BtcAddress    string              `json:"btc_address"`
	AmountBTC     string              `json:"amount_btc"`
	AmountUSD     decimal.NullDecimal `json:"amount_usd"`
	Status        model.InvoiceStatus `json:"status"`
	Description   string              `json:"description,omitempty"`
	QRCodeData    string              `json:"qr_code_data"`
	TransactionID *int64              `json:"transaction_id,omitempty"`
	ExpiresAt     time.Time           `json:"expires_at"`
	CreatedAt     time.Time           `json:"created_at"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

func toInvoiceResponse(inv *model.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:            inv.ID,
		BtcAddress:    inv.BtcAddress,
		AmountBTC:     blockchain.FormatBTC(inv.AmountBTC),
		AmountUSD:     inv.AmountUSD,
		Status:        inv.Status,
		Description:   inv.Description,
		QRCodeData:    services.QRPayload(inv),
		TransactionID: inv.TransactionID,
		ExpiresAt:     inv.ExpiresAt,
		CreatedAt:     inv.CreatedAt,
		PaidAt:        inv.PaidAt,
	}
}

// resolveAmount returns the BTC amount, converting a USD-only request at the fixed rate.
func (h *InvoiceHandler) resolveAmount(req createInvoiceRequest) (decimal.Decimal, error) {
	if req.AmountBTC.Valid && !req.AmountBTC.Decimal.IsZero() {
		return req.AmountBTC.Decimal, nil
	}
	if req.AmountUSD.Valid && !req.AmountUSD.Decimal.IsZero() {
		if !h.usdRate.IsPositive() {
			return decimal.Zero, fmt.Errorf("USD conversion is not configured")
		}
		return req.AmountUSD.Decimal.DivRound(h.usdRate, 8), nil
	}
	return decimal.Zero, fmt.Errorf("either amount_btc or amount_usd must be provided")
}

func (h *InvoiceHandler) CreateInvoice(ctx *xhttp.RequestCtx) {
	userID, err := callerID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
		return
	}

	var req createInvoiceRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	amount, err := h.resolveAmount(req)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.Create(xhttp.Context(ctx), model.InvoiceCreateRequest{
		UserID:         userID,
		AmountBTC:      amount,
		AmountUSD:      req.AmountUSD,
		Description:    req.Description,
		ExpiresInHours: req.ExpiresInHours,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, toInvoiceResponse(inv))
}

func (h *InvoiceHandler) ListInvoices(ctx *xhttp.RequestCtx) {
	userID, err := callerID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
		return
	}

	f := model.InvoiceFilter{UserID: userID}
	if v := query(ctx, "status"); v != "" {
		s := model.InvoiceStatus(v)
		f.Status = &s
	}
	if f.Limit, err = queryInt(ctx, "limit", 10); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if f.Offset, err = queryInt(ctx, "offset", 0); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	if f.Limit < 1 || f.Limit > 100 {
		writeError(ctx, xhttp.StatusBadRequest, "limit must be between 1 and 100")
		return
	}

	items, total, err := h.svc.List(xhttp.Context(ctx), f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	resp := listResponse[invoiceResponse]{Items: make([]invoiceResponse, 0, len(items)), Total: total, Limit: f.Limit, Offset: f.Offset}
	for _, inv := range items {
		resp.Items = append(resp.Items, toInvoiceResponse(inv))
	}
	writeJSON(ctx, xhttp.StatusOK, resp)
}

func (h *InvoiceHandler) GetInvoice(ctx *xhttp.RequestCtx) {
	inv, ok := h.loadInvoice(ctx)
	if !ok {
		return
	}
	writeJSON(ctx, xhttp.StatusOK, toInvoiceResponse(inv))
}

func (h *InvoiceHandler) CancelInvoice(ctx *xhttp.RequestCtx) {
	userID, err := callerID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	inv, err := h.svc.Cancel(xhttp.Context(ctx), id, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, toInvoiceResponse(inv))
}

func (h *InvoiceHandler) GetInvoiceQR(ctx *xhttp.RequestCtx) {
	inv, ok := h.loadInvoice(ctx)
	if !ok {
		return
	}
	size, err := queryInt(ctx, "size", services.DefaultQRSize)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	png, err := services.QRCodePNG(inv, size)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.Response.Header.Set("Content-Type", "image/png")
	ctx.Response.Header.Set("Cache-Control", "private, max-age="+strconv.Itoa(300))
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyRaw(png)
}

func (h *InvoiceHandler) loadInvoice(ctx *xhttp.RequestCtx) (*model.Invoice, bool) {
	userID, err := callerID(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusUnauthorized, err.Error())
		return nil, false
	}
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return nil, false
	}
	inv, err := h.svc.Get(xhttp.Context(ctx), id, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return nil, false
	}
	return inv, true
}
