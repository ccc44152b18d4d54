package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nimasrn/btc-invoice-gateway/internal/services"
	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
)

// HeaderUserID carries the caller identity resolved by the auth layer in front of the API.
const HeaderUserID = "X-User-ID"

var errMissingUser = errors.New("user_id is required")

type listResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		ctx.Response.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps service sentinels to status codes.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, xhttp.StatusNotFound, "not found")
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrInvoiceNotPending):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	case errors.Is(err, services.ErrAddressProvider):
		writeError(ctx, xhttp.StatusBadGateway, "address provider unavailable")
	default:
		logger.Error("request failed", "path", string(ctx.Path()), "request_id", xhttp.RequestID(ctx), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt(ctx *xhttp.RequestCtx, key string, def int) (int, error) {
	v := query(ctx, key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// callerID reads the user id from the auth header, falling back to the user_id query arg.
func callerID(ctx *xhttp.RequestCtx) (int64, error) {
	v := string(ctx.Request.Header.Peek(HeaderUserID))
	if v == "" {
		v = query(ctx, "user_id")
	}
	if v == "" {
		return 0, errMissingUser
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("user_id is invalid")
	}
	return id, nil
}
