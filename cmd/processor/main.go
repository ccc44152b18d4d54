package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/config"
	"github.com/nimasrn/btc-invoice-gateway/internal/processor"
	"github.com/nimasrn/btc-invoice-gateway/internal/repository"
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
	logger.Info("starting processor", "version", version, "commit", commit, "date", date)

	if cfg.WebhookCallbackURL == "" {
		logger.Error("WEBHOOK_CALLBACK_URL is required to register address hooks")
		return
	}

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

	chain, err := blockchain.NewClient(cfg.Blockchain())
	if err != nil {
		logger.Error("failed creating chain provider client", "error", err)
		return
	}

	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyConfig.MaxRetries = cfg.QueueMaxRetries
	idempotencyService := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	queueConfig := cfg.Queue()
	if queueConfig.ConsumerName == "" {
		queueConfig.ConsumerName, _ = os.Hostname()
	}

	service := processor.NewProcessorService(redisAdap, processor.Config{
		Queue:     queueConfig,
		Consumers: 2,
		Workers:   cfg.WorkerCount,
	})
	service.RegisterProcessor(processor.NewHookRegistrar(
		repository.NewWalletRepository(db),
		chain,
		idempotencyService,
		cfg.WebhookCallbackURL,
	))

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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		service.Stop()
		return
	}

	<-c
	service.Stop()
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
