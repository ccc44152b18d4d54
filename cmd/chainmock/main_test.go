package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gin-gonic/gin"
	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	url       string
	body      []byte
	signature string
}

type recorder struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (r *recorder) notify(url string, body []byte, signature string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{url: url, body: body, signature: signature})
	return nil
}

func setupChainMock(t *testing.T, secret string) (*gin.Engine, *recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	chain := NewChain(&chaincfg.TestNet3Params, secret)
	rec := &recorder{}
	chain.notify = rec.notify
	return SetupRouter(NewHandler(chain)), rec
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func generateAddress(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/btc/test3/addrs", map[string]string{})
	require.Equal(t, http.StatusCreated, w.Code)
	var addr blockchain.GeneratedAddress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &addr))
	return addr.Address
}

func TestChainMock_GeneratesNetworkAddresses(t *testing.T) {
	router, _ := setupChainMock(t, "")

	first := generateAddress(t, router)
	second := generateAddress(t, router)
	assert.NotEqual(t, first, second)
	assert.NoError(t, blockchain.ValidateAddress(first, &chaincfg.TestNet3Params))
	assert.Error(t, blockchain.ValidateAddress(first, &chaincfg.MainNetParams))
}

func TestChainMock_PaymentFiresSignedWebhook(t *testing.T) {
	router, rec := setupChainMock(t, "secret")
	address := generateAddress(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/btc/test3/hooks", blockchain.Hook{
		Event: blockchain.HookEventTxConfirmation, Address: address, URL: "http://gateway/api/v1/webhooks/blockchain",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/simulate/payment", map[string]interface{}{
		"address": address, "amount_btc": "0.001", "hash": "abc",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, rec.deliveries, 1)
	d := rec.deliveries[0]
	assert.Equal(t, "http://gateway/api/v1/webhooks/blockchain", d.url)
	assert.True(t, reconcile.VerifySignature(d.body, d.signature, "secret"))
	assert.JSONEq(t, `{"address":"`+address+`","hash":"abc","confirmations":0}`, string(d.body))

	w = doJSON(t, router, http.MethodGet, "/v1/btc/test3/txs/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tx blockchain.TxDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tx))
	assert.Equal(t, int64(100_000), tx.ReceivedBy(address))

	w = doJSON(t, router, http.MethodPost, "/simulate/confirmation", map[string]interface{}{"hash": "abc", "confirmations": 2})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.deliveries, 2)

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.deliveries[1].body, &second))
	assert.EqualValues(t, 2, second["confirmations"])
	assert.NotNil(t, second["block_height"])
}

func TestChainMock_Balance(t *testing.T) {
	router, _ := setupChainMock(t, "")
	address := generateAddress(t, router)

	doJSON(t, router, http.MethodPost, "/simulate/payment", map[string]interface{}{"address": address, "amount_satoshi": 5000, "confirmations": 1})
	doJSON(t, router, http.MethodPost, "/simulate/payment", map[string]interface{}{"address": address, "amount_satoshi": 700})

	w := doJSON(t, router, http.MethodGet, "/v1/btc/test3/addrs/"+address+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bal blockchain.AddressBalance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bal))
	assert.Equal(t, int64(5700), bal.TotalReceived)
	assert.Equal(t, int64(5000), bal.Balance)
	assert.Equal(t, int64(700), bal.UnconfirmedBalance)
	assert.Equal(t, 1, bal.UnconfirmedNTx)

	w = doJSON(t, router, http.MethodGet, "/v1/btc/test3/addrs/"+address+"/full", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var full struct {
		Txs []*blockchain.TxDetail `json:"txs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &full))
	assert.Len(t, full.Txs, 2)
}

func TestChainMock_Rejections(t *testing.T) {
	router, _ := setupChainMock(t, "")
	address := generateAddress(t, router)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"hook for unknown address", http.MethodPost, "/v1/btc/test3/hooks", blockchain.Hook{Address: "nope", URL: "http://x"}, http.StatusBadRequest},
		{"hook without url", http.MethodPost, "/v1/btc/test3/hooks", blockchain.Hook{Address: address}, http.StatusBadRequest},
		{"payment to unknown address", http.MethodPost, "/simulate/payment", map[string]interface{}{"address": "nope", "amount_satoshi": 1}, http.StatusBadRequest},
		{"zero payment", http.MethodPost, "/simulate/payment", map[string]interface{}{"address": address}, http.StatusBadRequest},
		{"bad amount", http.MethodPost, "/simulate/payment", map[string]interface{}{"address": address, "amount_btc": "x"}, http.StatusBadRequest},
		{"unknown tx", http.MethodGet, "/v1/btc/test3/txs/missing", nil, http.StatusNotFound},
		{"confirm unknown tx", http.MethodPost, "/simulate/confirmation", map[string]interface{}{"hash": "missing", "confirmations": 1}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
