package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/prom"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableEndpoints = errors.New("no available chain provider endpoints")
	ErrNotFound             = errors.New("not found at chain provider")
)

// HTTPError is a non-success answer from the provider.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// retryable reports whether another endpoint could answer differently.
func (e *HTTPError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == fasthttp.StatusTooManyRequests
}

type EndpointConfig struct {
	Name    string
	BaseURL string // e.g. https://api.blockcypher.com/v1/btc
}

type Config struct {
	Endpoints               []EndpointConfig
	Network                 string
	Token                   string
	Timeout                 time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration

	// Dial overrides the transport, used by tests with in-memory listeners.
	Dial fasthttp.DialFunc
}

// Provider is what the rest of the gateway needs from the chain.
type Provider interface {
	GenerateAddress(ctx context.Context) (*GeneratedAddress, error)
	GetTransaction(ctx context.Context, hash string) (*TxDetail, error)
	GetAddressBalance(ctx context.Context, address string) (*AddressBalance, error)
	GetAddressTransactions(ctx context.Context, address string) ([]*TxDetail, error)
	CreateWebhook(ctx context.Context, address, callbackURL string) (*Hook, error)
}

// Client talks to a BlockCypher compatible API. Endpoints are tried in order;
// an endpoint whose circuit is open is skipped until its timeout passes.
type Client struct {
	config    Config
	params    *chaincfg.Params
	endpoints []*Endpoint
}

var _ Provider = (*Client)(nil)

func NewClient(config Config) (*Client, error) {
	if len(config.Endpoints) == 0 {
		return nil, errors.New("at least one endpoint is required")
	}
	if config.Network == "" {
		config.Network = "test3"
	}
	params, err := NetworkParams(config.Network)
	if err != nil {
		return nil, err
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 64
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = 30 * time.Second
	}

	c := &Client{
		config:    config,
		params:    params,
		endpoints: make([]*Endpoint, 0, len(config.Endpoints)),
	}
	for _, ec := range config.Endpoints {
		if ec.BaseURL == "" {
			continue
		}
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			Dial:                config.Dial,
		}
		base := strings.TrimRight(ec.BaseURL, "/") + "/" + config.Network
		c.endpoints = append(c.endpoints, newEndpoint(ec.Name, base, httpClient))
		logger.Info("chain provider endpoint initialized", "name", ec.Name, "url", base)
	}
	if len(c.endpoints) == 0 {
		return nil, errors.New("at least one endpoint with a base url is required")
	}

	return c, nil
}

func (c *Client) Params() *chaincfg.Params {
	return c.params
}

func (c *Client) GenerateAddress(ctx context.Context) (*GeneratedAddress, error) {
	var out GeneratedAddress
	if err := c.call(ctx, "generate_address", fasthttp.MethodPost, "/addrs", []byte("{}"), &out); err != nil {
		return nil, err
	}
	if err := ValidateAddress(out.Address, c.params); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTransaction(ctx context.Context, hash string) (*TxDetail, error) {
	var out TxDetail
	if err := c.call(ctx, "get_transaction", fasthttp.MethodGet, "/txs/"+url.PathEscape(hash), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAddressBalance(ctx context.Context, address string) (*AddressBalance, error) {
	var out AddressBalance
	if err := c.call(ctx, "get_address_balance", fasthttp.MethodGet, "/addrs/"+url.PathEscape(address)+"/balance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAddressTransactions(ctx context.Context, address string) ([]*TxDetail, error) {
	var out addressFull
	if err := c.call(ctx, "get_address_transactions", fasthttp.MethodGet, "/addrs/"+url.PathEscape(address)+"/full", nil, &out); err != nil {
		return nil, err
	}
	return out.Txs, nil
}

func (c *Client) CreateWebhook(ctx context.Context, address, callbackURL string) (*Hook, error) {
	body, err := json.Marshal(Hook{Event: HookEventTxConfirmation, Address: address, URL: callbackURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal hook: %w", err)
	}
	var out Hook
	if err := c.call(ctx, "create_webhook", fasthttp.MethodPost, "/hooks", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, operation, method, path string, body []byte, out interface{}) error {
	var lastErr error = ErrNoAvailableEndpoints
	for _, endpoint := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !endpoint.IsAvailable() {
			continue
		}

		start := time.Now()
		response, err := c.doRequest(ctx, endpoint, method, path, body)
		latency := time.Since(start)

		var httpErr *HTTPError
		if err != nil && (!errors.As(err, &httpErr) || httpErr.retryable()) {
			endpoint.metrics.RecordFailure()
			c.checkCircuitBreaker(endpoint)
			prom.AddProviderRequest(endpoint.name, operation, latency.Seconds(), true)
			logger.Warn("chain provider request failed", "endpoint", endpoint.name, "operation", operation, "error", err)
			lastErr = err
			continue
		}

		endpoint.metrics.RecordSuccess(latency.Milliseconds())
		prom.AddProviderRequest(endpoint.name, operation, latency.Seconds(), err != nil)
		if err != nil {
			if httpErr.StatusCode == fasthttp.StatusNotFound {
				return fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return err
		}

		if err := json.Unmarshal(response, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s response: %w", operation, err)
		}
		return nil
	}
	return lastErr
}

func (c *Client) doRequest(ctx context.Context, endpoint *Endpoint, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := endpoint.baseURL + path
	if c.config.Token != "" {
		uri += "?token=" + url.QueryEscape(c.config.Token)
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := endpoint.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode >= 300 {
		return nil, &HTTPError{StatusCode: statusCode, Body: string(resp.Body())}
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func (c *Client) checkCircuitBreaker(endpoint *Endpoint) {
	consecutiveFails := endpoint.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) {
		endpoint.openCircuit(c.config.CircuitBreakerTimeout)
		logger.Warn("circuit breaker opened", "endpoint", endpoint.name, "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

// Stats reports per-endpoint counters, exposed on the health endpoint.
func (c *Client) Stats() []EndpointStats {
	stats := make([]EndpointStats, 0, len(c.endpoints))
	for _, e := range c.endpoints {
		stats = append(stats, EndpointStats{
			Name:             e.name,
			URL:              e.baseURL,
			State:            stateString(e.GetState()),
			TotalRequests:    e.metrics.TotalRequests.Load(),
			FailedReqs:       e.metrics.FailedReqs.Load(),
			SuccessRate:      e.metrics.SuccessRate(),
			AvgLatencyMs:     e.metrics.AvgLatencyMs(),
			ConsecutiveFails: e.metrics.ConsecutiveFails.Load(),
		})
	}
	return stats
}
