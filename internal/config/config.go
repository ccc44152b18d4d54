package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/btc-invoice-gateway/internal/blockchain"
	"github.com/nimasrn/btc-invoice-gateway/internal/queue"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/pg"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var config *Config

// Config holds every setting of the gateway. Nothing else reads the
// environment directly.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=btc_invoice_gateway"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`
	LogLevel string `env:"LOG_LEVEL"`

	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR"`
	MetricsURI        string `env:"METRICS_URI,default=/metrics"`
	PromNamespace     string `env:"PROM_NAMESPACE,default=btc_invoice"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=15s"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=btcinv:"`

	BlockCypherBaseURL     string        `env:"BLOCKCYPHER_BASE_URL,default=https://api.blockcypher.com/v1/btc"`
	BlockCypherFallbackURL string        `env:"BLOCKCYPHER_FALLBACK_URL"`
	BlockCypherNetwork     string        `env:"BLOCKCYPHER_NETWORK,default=test3"`
	BlockCypherToken       string        `env:"BLOCKCYPHER_TOKEN"`
	ProviderTimeout        time.Duration `env:"PROVIDER_TIMEOUT,default=10s"`
	CircuitBreakerFailures int           `env:"CIRCUIT_BREAKER_FAILURES,default=5"`
	CircuitBreakerTimeout  time.Duration `env:"CIRCUIT_BREAKER_TIMEOUT,default=30s"`

	WebhookSecret            string        `env:"WEBHOOK_SECRET"`
	WebhookCallbackURL       string        `env:"WEBHOOK_CALLBACK_URL"`
	MinConfirmations         int           `env:"MIN_CONFIRMATIONS,default=1"`
	RecommendedConfirmations int           `env:"RECOMMENDED_CONFIRMATIONS,default=6"`
	SettlementTolerance      string        `env:"SETTLEMENT_TOLERANCE,default=0.00001"`
	InvoiceExpiryHours       int           `env:"INVOICE_DEFAULT_EXPIRY_HOURS,default=24"`
	BtcUsdRate               string        `env:"BTC_USD_RATE,default=50000"`
	TxLockTTL                time.Duration `env:"TX_LOCK_TTL,default=30s"`

	QueueName              string        `env:"QUEUE_NAME,default=wallet:events"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=hook-registrar"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`
	WorkerCount            int           `env:"WORKER_COUNT,default=4"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to configuration")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if err := logger.SetLevel(c.LogLevel); err != nil {
			logger.Warn("invalid log level, keeping default", "level", c.LogLevel)
		}
	}

	config = c
	return nil
}

func (c *Config) Validate() error {
	if c.MinConfirmations < 0 {
		return errors.New("MIN_CONFIRMATIONS must not be negative")
	}
	if c.RecommendedConfirmations < c.MinConfirmations {
		return errors.New("RECOMMENDED_CONFIRMATIONS must not be lower than MIN_CONFIRMATIONS")
	}
	tol, err := decimal.NewFromString(c.SettlementTolerance)
	if err != nil {
		return errors.Wrap(err, "invalid SETTLEMENT_TOLERANCE")
	}
	if tol.IsNegative() {
		return errors.New("SETTLEMENT_TOLERANCE must not be negative")
	}
	if _, err := decimal.NewFromString(c.BtcUsdRate); err != nil {
		return errors.Wrap(err, "invalid BTC_USD_RATE")
	}
	if c.InvoiceExpiryHours <= 0 {
		return errors.New("INVOICE_DEFAULT_EXPIRY_HOURS must be positive")
	}
	return nil
}

// Tolerance returns the settlement tolerance in BTC. Validate guarantees it parses.
func (c *Config) Tolerance() decimal.Decimal {
	return decimal.RequireFromString(c.SettlementTolerance)
}

func (c *Config) UsdRate() decimal.Decimal {
	return decimal.RequireFromString(c.BtcUsdRate)
}

func (c *Config) InvoiceExpiry() time.Duration {
	return time.Duration(c.InvoiceExpiryHours) * time.Hour
}

func (c *Config) ReadDB() pg.Config {
	return pg.Config{
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		User:     c.PostgresReadUser,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

func (c *Config) WriteDB() pg.Config {
	return pg.Config{
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		User:     c.PostgresWriteUser,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

func (c *Config) RedisOptions() *goredis.UniversalOptions {
	return &goredis.UniversalOptions{
		Addrs:    []string{c.RedisAddr},
		Username: c.RedisUsername,
		Password: c.RedisPassword,
		DB:       c.RedisDatabase,
	}
}

// Blockchain builds the chain provider client settings. The fallback endpoint is optional.
func (c *Config) Blockchain() blockchain.Config {
	endpoints := []blockchain.EndpointConfig{{Name: "primary", BaseURL: c.BlockCypherBaseURL}}
	if c.BlockCypherFallbackURL != "" {
		endpoints = append(endpoints, blockchain.EndpointConfig{Name: "fallback", BaseURL: c.BlockCypherFallbackURL})
	}
	return blockchain.Config{
		Endpoints:               endpoints,
		Network:                 c.BlockCypherNetwork,
		Token:                   c.BlockCypherToken,
		Timeout:                 c.ProviderTimeout,
		MaxConns:                256,
		CircuitBreakerThreshold: c.CircuitBreakerFailures,
		CircuitBreakerTimeout:   c.CircuitBreakerTimeout,
	}
}

func (c *Config) Queue() queue.QueueConfig {
	return queue.QueueConfig{
		Name:              c.QueueName,
		ConsumerGroup:     c.QueueConsumerGroup,
		ConsumerName:      c.QueueConsumerName,
		MaxRetries:        c.QueueMaxRetries,
		VisibilityTimeout: c.QueueVisibilityTimeout,
		PollInterval:      c.QueuePollInterval,
		BatchSize:         c.QueueBatchSize,
		MaxLen:            c.QueueMaxLen,
		EnableDLQ:         c.QueueEnableDLQ,
	}
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the global configuration, used by tests and tools that build it in code.
func Set(c *Config) {
	config = c
}
