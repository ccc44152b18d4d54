package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/reconcile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const signatureHeader = "X-Webhook-Signature"

var errUnknownAddress = errors.New("address was not generated by this chain")

// Chain is an in-memory stand-in for a BlockCypher style provider.
type Chain struct {
	mu        sync.RWMutex
	params    *chaincfg.Params
	height    int64
	addresses map[string]struct{}
	txs       map[string]*blockchain.TxDetail
	byAddress map[string][]string
	hooks     map[string][]blockchain.Hook
	secret    string
	notify    func(url string, body []byte, signature string) error
}

func NewChain(params *chaincfg.Params, secret string) *Chain {
	return &Chain{
		params:    params,
		height:    800_000,
		addresses: make(map[string]struct{}),
		txs:       make(map[string]*blockchain.TxDetail),
		byAddress: make(map[string][]string),
		hooks:     make(map[string][]blockchain.Hook),
		secret:    secret,
		notify:    postWebhook,
	}
}

// NewAddress derives a valid segwit address for the configured network from random bytes.
func (c *Chain) NewAddress() (*blockchain.GeneratedAddress, error) {
	seed := uuid.New()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(seed[:]), c.params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.addresses[addr.EncodeAddress()] = struct{}{}
	c.mu.Unlock()

	return &blockchain.GeneratedAddress{
		Address: addr.EncodeAddress(),
		Public:  hex.EncodeToString(seed[:]),
	}, nil
}

func (c *Chain) AddHook(hook blockchain.Hook) (blockchain.Hook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.addresses[hook.Address]; !ok {
		return hook, errUnknownAddress
	}
	hook.ID = uuid.NewString()
	c.hooks[hook.Address] = append(c.hooks[hook.Address], hook)
	return hook, nil
}

func (c *Chain) Transaction(hash string) (*blockchain.TxDetail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.txs[hash]
	if !ok {
		return nil, false
	}
	cp := *tx
	return &cp, true
}

type paymentRequest struct {
	Address       string `json:"address" binding:"required"`
	AmountBTC     string `json:"amount_btc"`
	AmountSatoshi int64  `json:"amount_satoshi"`
	Confirmations int    `json:"confirmations"`
	Hash          string `json:"hash"`
}

// Pay records a transaction paying the address and returns it with the hooks to notify.
func (c *Chain) Pay(req paymentRequest) (*blockchain.TxDetail, []blockchain.Hook, error) {
	sat := req.AmountSatoshi
	if req.AmountBTC != "" {
		btc, err := decimal.NewFromString(req.AmountBTC)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid amount_btc: %w", err)
		}
		sat = blockchain.BTCToSatoshi(btc)
	}
	if sat <= 0 {
		return nil, nil, errors.New("amount must be positive")
	}
	if req.Confirmations < 0 {
		return nil, nil, errors.New("confirmations must not be negative")
	}
	if req.Hash == "" {
		id := uuid.New()
		req.Hash = hex.EncodeToString(append(id[:], id[:]...))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.addresses[req.Address]; !ok {
		return nil, nil, errUnknownAddress
	}
	if _, ok := c.txs[req.Hash]; ok {
		return nil, nil, fmt.Errorf("transaction %s already exists", req.Hash)
	}

	c.height++
	tx := &blockchain.TxDetail{
		Hash:          req.Hash,
		Confirmations: req.Confirmations,
		Received:      time.Now().UTC(),
		Outputs:       []blockchain.TxOutput{{Addresses: []string{req.Address}, Value: sat}},
	}
	if req.Confirmations > 0 {
		tx.BlockHeight = c.height
	}
	c.txs[tx.Hash] = tx
	c.byAddress[req.Address] = append(c.byAddress[req.Address], tx.Hash)

	cp := *tx
	return &cp, append([]blockchain.Hook(nil), c.hooks[req.Address]...), nil
}

// Confirm updates the confirmation count of a known transaction.
func (c *Chain) Confirm(hash string, confirmations int) (*blockchain.TxDetail, string, []blockchain.Hook, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.txs[hash]
	if !ok {
		return nil, "", nil, false
	}
	tx.Confirmations = confirmations
	if confirmations > 0 && tx.BlockHeight == 0 {
		c.height++
		tx.BlockHeight = c.height
	}
	address := tx.Outputs[0].Addresses[0]
	cp := *tx
	return &cp, address, append([]blockchain.Hook(nil), c.hooks[address]...), true
}

func (c *Chain) Balance(address string) (*blockchain.AddressBalance, []*blockchain.TxDetail) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bal := &blockchain.AddressBalance{Address: address}
	txs := make([]*blockchain.TxDetail, 0, len(c.byAddress[address]))
	for _, hash := range c.byAddress[address] {
		tx := c.txs[hash]
		amount := tx.ReceivedBy(address)
		bal.TotalReceived += amount
		if tx.Confirmations > 0 {
			bal.Balance += amount
			bal.NTx++
		} else {
			bal.UnconfirmedBalance += amount
			bal.UnconfirmedNTx++
		}
		cp := *tx
		txs = append(txs, &cp)
	}
	bal.FinalBalance = bal.Balance + bal.UnconfirmedBalance
	return bal, txs
}

// Fire delivers a signed notification for tx to every hook.
func (c *Chain) Fire(address string, tx *blockchain.TxDetail, hooks []blockchain.Hook) int {
	payload := map[string]interface{}{
		"address":       address,
		"hash":          tx.Hash,
		"confirmations": tx.Confirmations,
	}
	if tx.BlockHeight > 0 {
		payload["block_height"] = tx.BlockHeight
	}
	body, _ := json.Marshal(payload)

	signature := ""
	if c.secret != "" {
		signature = reconcile.Sign(body, c.secret)
	}

	delivered := 0
	for _, hook := range hooks {
		if err := c.notify(hook.URL, body, signature); err != nil {
			log.Warn().Err(err).Str("hook_id", hook.ID).Str("url", hook.URL).Msg("Webhook delivery failed")
			continue
		}
		delivered++
		log.Info().Str("hook_id", hook.ID).Str("tx_hash", tx.Hash).Int("confirmations", tx.Confirmations).Msg("Webhook delivered")
	}
	return delivered
}

var webhookClient = &http.Client{Timeout: 10 * time.Second}

func postWebhook(url string, body []byte, signature string) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	resp, err := webhookClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook answered %d", resp.StatusCode)
	}
	return nil
}

type Handler struct {
	chain *Chain
}

func NewHandler(chain *Chain) *Handler {
	return &Handler{chain: chain}
}

func (h *Handler) GenerateAddress(c *gin.Context) {
	addr, err := h.chain.NewAddress()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("address", addr.Address).Msg("Address generated")
	c.JSON(http.StatusCreated, addr)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	tx, ok := h.chain.Transaction(c.Param("hash"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) CreateHook(c *gin.Context) {
	var hook blockchain.Hook
	if err := c.ShouldBindJSON(&hook); err != nil || hook.Address == "" || hook.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address and url are required"})
		return
	}
	created, err := h.chain.AddHook(hook)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("hook_id", created.ID).Str("address", created.Address).Str("url", created.URL).Msg("Hook registered")
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) AddressBalance(c *gin.Context) {
	bal, _ := h.chain.Balance(c.Param("addr"))
	c.JSON(http.StatusOK, bal)
}

func (h *Handler) AddressFull(c *gin.Context) {
	address := c.Param("addr")
	_, txs := h.chain.Balance(address)
	c.JSON(http.StatusOK, gin.H{"address": address, "txs": txs})
}

func (h *Handler) SimulatePayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	tx, hooks, err := h.chain.Pay(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	delivered := h.chain.Fire(req.Address, tx, hooks)
	c.JSON(http.StatusCreated, gin.H{"transaction": tx, "hooks_notified": delivered})
}

func (h *Handler) SimulateConfirmation(c *gin.Context) {
	var req struct {
		Hash          string `json:"hash" binding:"required"`
		Confirmations int    `json:"confirmations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	tx, address, hooks, ok := h.chain.Confirm(req.Hash, req.Confirmations)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}
	delivered := h.chain.Fire(address, tx, hooks)
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "hooks_notified": delivered})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	// Same paths as the BlockCypher API, rooted at the network prefix.
	v1 := router.Group("/v1/btc/:network")
	{
		v1.POST("/addrs", handler.GenerateAddress)
		v1.GET("/addrs/:addr/balance", handler.AddressBalance)
		v1.GET("/addrs/:addr/full", handler.AddressFull)
		v1.GET("/txs/:hash", handler.GetTransaction)
		v1.POST("/hooks", handler.CreateHook)
	}

	sim := router.Group("/simulate")
	{
		sim.POST("/payment", handler.SimulatePayment)
		sim.POST("/confirmation", handler.SimulateConfirmation)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	network := getEnv("NETWORK", "test3")
	secret := os.Getenv("WEBHOOK_SECRET")

	params, err := blockchain.NetworkParams(network)
	if err != nil {
		log.Fatal().Err(err).Str("network", network).Msg("Unsupported network")
	}

	log.Info().Str("port", port).Str("network", network).Bool("signing", secret != "").Msg("Starting mock chain provider")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      SetupRouter(NewHandler(NewChain(params, secret))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
