package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/config"
	"github.com/nimasrn/btc-invoice-gateway/internal/handlers"
	"github.com/nimasrn/btc-invoice-gateway/internal/queue"
	"github.com/nimasrn/btc-invoice-gateway/internal/reconcile"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository"
	"github.com/nimasrn/btc-invoice-gateway/internal/services"
	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/pg"
	"github.com/nimasrn/btc-invoice-gateway/pkg/prom"
	"github.com/nimasrn/btc-invoice-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	// The first middleware is the outermost. Recover sits inside Timeout
	// because the timeout handler runs the chain on its own goroutine.
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.ContextMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	db, err := pg.CreateReadWrite(cfg.ReadDB(), cfg.WriteDB(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions())
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	walletQueue, err := queue.NewQueue(redisAdap, cfg.Queue())
	if err != nil {
		logger.Error("failed creating wallet event queue", "error", err)
		return
	}

	chain, err := blockchain.NewClient(cfg.Blockchain())
	if err != nil {
		logger.Error("failed creating chain provider client", "error", err)
		return
	}

	if cfg.MetricsListenAddr != "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed to create prometheus metrics", "error", err)
			return
		}
		go prom.ListenAndServer(cfg.MetricsListenAddr, cfg.MetricsURI)
	}

	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	engine := reconcile.NewEngine(reconcile.Deps{
		DB:           db,
		Wallets:      walletRepo,
		Invoices:     invoiceRepo,
		Transactions: transactionRepo,
		Provider:     chain,
		Locker:       reconcile.NewRedisLocker(redisAdap, cfg.ProviderTimeout),
	}, reconcile.Config{
		WebhookSecret:    cfg.WebhookSecret,
		MinConfirmations: cfg.MinConfirmations,
		Tolerance:        cfg.Tolerance(),
		ProviderTimeout:  cfg.ProviderTimeout,
		LockTTL:          cfg.TxLockTTL,
	})
	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is empty, webhook signatures are not verified")
	}

	// services
	userService := services.NewUserService(userRepo)
	walletService := services.NewWalletService(walletRepo, transactionRepo, userRepo, chain, queue.NewWalletEvents(walletQueue), cfg.MinConfirmations)
	invoiceService := services.NewInvoiceService(invoiceRepo, walletService, cfg.InvoiceExpiryHours)
	transactionService := services.NewTransactionService(transactionRepo, walletRepo)

	redisPing := handlers.PingFunc(func(context.Context) error { return redisAdap.Ping() })

	// v1 handlers
	g := s.Router.Group("/api/v1")
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(db, redisPing))
	handlers.RegisterWebhookRoutes(g, handlers.NewWebhookHandler(engine))
	handlers.RegisterUserRoutes(g, handlers.NewUserHandler(userService))
	handlers.RegisterWalletRoutes(g, handlers.NewWalletHandler(walletService))
	handlers.RegisterInvoiceRoutes(g, handlers.NewInvoiceHandler(invoiceService, cfg.UsdRate()))
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactionService))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("http server listening", "addr", cfg.HttpListenAddr)
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
