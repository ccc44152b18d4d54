package handlers

import (
	"encoding/json"
	"testing"

	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func asUser(ctx *xhttp.RequestCtx, id string) *xhttp.RequestCtx {
	ctx.Request.Header.Set(HeaderUserID, id)
	return ctx
}

func decodeBody(t *testing.T, ctx *xhttp.RequestCtx) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out))
	return out
}
