package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every env-driven setting of the api, processor and cli
// binaries. Nothing else in the module reads the environment directly.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=dv_referral_ledger"`
	AppDebug            bool   `env:"APP_DEBUG,default=false"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR,default=:9100"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`
	AppBaseUrl          string `env:"APP_BASE_URL"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpBaseRequestUrl string        `env:"HTTP_BASE_REQUEST_URI,default=/api/v1"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`
	HttpReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT,default=2500ms"`
	HttpWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT,default=2500ms"`
	HttpIdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT,default=10s"`
	HttpReadBuffer     int           `env:"HTTP_READ_BUFFER_BYTES,default=16384"`
	HttpWriteBuffer    int           `env:"HTTP_WRITE_BUFFER_BYTES,default=16384"`
	HttpMaxBodySize    int           `env:"HTTP_MAX_BODY_BYTES,default=1048576"`
	HttpConcurrency    int           `env:"HTTP_CONCURRENCY,default=30000"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE,default=dv"`

	JWTSecret   string        `env:"JWT_SECRET"`
	JWTTokenTTL time.Duration `env:"JWT_TOKEN_TTL,default=12h"`

	ApplicationFee int64         `env:"APPLICATION_FEE,default=500"`
	ReceiptMaxAge  time.Duration `env:"RECEIPT_MAX_AGE,default=720h"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL,default=2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE,default=100"`

	ReconcileSchedule string `env:"RECONCILE_SCHEDULE,default=@every 1h"`

	QueueName              string        `env:"QUEUE_NAME,default=referral:rewards"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=reward-processors"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=500ms"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`
	ProcessorConsumers     int           `env:"PROCESSOR_CONSUMERS,default=2"`
	ProcessorWorkers       int           `env:"PROCESSOR_WORKERS,default=4"`

	BankProviderPrimaryUrl   string `env:"BANK_PROVIDER_PRIMARY_URL"`
	BankProviderSecondaryUrl string        `env:"BANK_PROVIDER_SECONDARY_URL"`
	BankTimeout              time.Duration `env:"BANK_TIMEOUT,default=3s"`
	BankMaxRetries           int           `env:"BANK_MAX_RETRIES,default=2"`
	BankHealthInterval       time.Duration `env:"BANK_HEALTH_INTERVAL,default=30s"`
	BankMockListenAddr       string        `env:"BANK_MOCK_LISTEN_ADDR,default=:8090"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration file "+path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}
	if err = c.validate(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) validate() error {
	if c.ApplicationFee <= 0 {
		return errors.New("APPLICATION_FEE must be positive")
	}
	if c.OutboxBatchSize <= 0 {
		return errors.New("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.AppEnv != "dev" && c.AppEnv != "test" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required outside dev")
	}
	return nil
}

// Set installs c as the global config. Used by tests and tools that build
// a Config without the environment.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
