package blockchain

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// startProvider serves handler on an in-memory listener and returns a dialer for it.
func startProvider(t *testing.T, handler fasthttp.RequestHandler) fasthttp.DialFunc {
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return func(addr string) (net.Conn, error) {
		return ln.Dial()
	}
}

func newTestClient(t *testing.T, handler fasthttp.RequestHandler, mutate ...func(*Config)) *Client {
	cfg := Config{
		Endpoints: []EndpointConfig{{Name: "primary", BaseURL: "http://provider.local/v1/btc"}},
		Network:   "main",
		Token:     "tok",
		Timeout:   time.Second,
		Dial:      startProvider(t, handler),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	_ = json.NewEncoder(ctx).Encode(v)
}

func TestClient_GetTransaction(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "/v1/btc/main/txs/tx1", string(ctx.Path()))
		assert.Equal(t, "tok", string(ctx.QueryArgs().Peek("token")))
		writeJSON(ctx, fasthttp.StatusOK, TxDetail{
			Hash:          "tx1",
			Confirmations: 2,
			Outputs:       []TxOutput{{Addresses: []string{"addr1"}, Value: 5000000}},
		})
	})

	tx, err := c.GetTransaction(context.Background(), "tx1")
	require.NoError(t, err)
	assert.Equal(t, "tx1", tx.Hash)
	assert.Equal(t, int64(5000000), tx.ReceivedBy("addr1"))
}

func TestClient_NotFound(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]string{"error": "Transaction not found"})
	})

	_, err := c.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "HEALTHY", c.Stats()[0].State)
}

func TestClient_GenerateAddress(t *testing.T) {
	t.Run("valid address", func(t *testing.T) {
		c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
			assert.Equal(t, fasthttp.MethodPost, string(ctx.Method()))
			assert.Equal(t, "/v1/btc/main/addrs", string(ctx.Path()))
			writeJSON(ctx, fasthttp.StatusCreated, GeneratedAddress{Address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"})
		})

		addr, err := c.GenerateAddress(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", addr.Address)
	})

	t.Run("address for the wrong network is rejected", func(t *testing.T) {
		c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
			writeJSON(ctx, fasthttp.StatusCreated, GeneratedAddress{Address: "garbage"})
		})

		_, err := c.GenerateAddress(context.Background())
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})
}

func TestClient_CreateWebhook(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		var hook Hook
		require.NoError(t, json.Unmarshal(ctx.PostBody(), &hook))
		assert.Equal(t, HookEventTxConfirmation, hook.Event)
		assert.Equal(t, "addr1", hook.Address)
		hook.ID = "hook-1"
		writeJSON(ctx, fasthttp.StatusCreated, hook)
	})

	hook, err := c.CreateWebhook(context.Background(), "addr1", "https://gateway.local/api/v1/webhooks/blockchain")
	require.NoError(t, err)
	assert.Equal(t, "hook-1", hook.ID)
	assert.Equal(t, "https://gateway.local/api/v1/webhooks/blockchain", hook.URL)
}

func TestClient_AddressQueries(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/v1/btc/main/addrs/addr1/balance":
			writeJSON(ctx, fasthttp.StatusOK, AddressBalance{Address: "addr1", Balance: 10, FinalBalance: 15, NTx: 2})
		case "/v1/btc/main/addrs/addr1/full":
			writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
				"address": "addr1",
				"txs":     []TxDetail{{Hash: "a"}, {Hash: "b"}},
			})
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})

	bal, err := c.GetAddressBalance(context.Background(), "addr1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), bal.FinalBalance)

	txs, err := c.GetAddressTransactions(context.Background(), "addr1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "b", txs[1].Hash)
}

func TestClient_FailoverAndCircuitBreaker(t *testing.T) {
	var primaryHits, fallbackHits atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Host()) == "primary.local" {
			primaryHits.Add(1)
			ctx.SetStatusCode(fasthttp.StatusBadGateway)
			return
		}
		fallbackHits.Add(1)
		writeJSON(ctx, fasthttp.StatusOK, TxDetail{Hash: "tx1"})
	}, func(cfg *Config) {
		cfg.Endpoints = []EndpointConfig{
			{Name: "primary", BaseURL: "http://primary.local/v1/btc"},
			{Name: "fallback", BaseURL: "http://fallback.local/v1/btc"},
		}
		cfg.CircuitBreakerThreshold = 2
		cfg.CircuitBreakerTimeout = time.Minute
	})

	for i := 0; i < 4; i++ {
		tx, err := c.GetTransaction(context.Background(), "tx1")
		require.NoError(t, err)
		assert.Equal(t, "tx1", tx.Hash)
	}

	assert.Equal(t, int32(2), primaryHits.Load(), "circuit opens after the threshold")
	assert.Equal(t, int32(4), fallbackHits.Load())

	stats := c.Stats()
	assert.Equal(t, "CIRCUIT_OPEN", stats[0].State)
	assert.Equal(t, "HEALTHY", stats[1].State)
}

func TestClient_AllEndpointsDown(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})

	_, err := c.GetTransaction(context.Background(), "tx1")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, fasthttp.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestClient_Deadline(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(ctx, fasthttp.StatusOK, TxDetail{Hash: "slow"})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetTransaction(ctx, "slow")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{Endpoints: []EndpointConfig{{Name: "x", BaseURL: "http://x"}}, Network: "litecoin"})
	assert.Error(t, err)

	_, err = NewClient(Config{Endpoints: []EndpointConfig{{Name: "x"}}})
	assert.Error(t, err)
}

func TestEndpoint_IsAvailable(t *testing.T) {
	e := newEndpoint("test", "http://localhost", &fasthttp.Client{})

	assert.True(t, e.IsAvailable())

	e.openCircuit(time.Minute)
	assert.False(t, e.IsAvailable())

	e.openCircuit(-time.Second)
	assert.True(t, e.IsAvailable())
	assert.Equal(t, StateHealthy, e.GetState())
}
