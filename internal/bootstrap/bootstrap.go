// Package bootstrap builds the shared dependencies of the binaries from
// config.Get().
package bootstrap

import (
	"os"
	"strings"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/config"
	"github.com/nimasrn/dv-referral-ledger/internal/gateways"
	"github.com/nimasrn/dv-referral-ledger/internal/queue"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"github.com/nimasrn/dv-referral-ledger/pkg/redis"
)

// EnvPath returns the value of a --env=path argument when the file exists.
func EnvPath(args []string) string {
	for _, v := range args {
		if strings.HasPrefix(v, "--env=") {
			path := strings.TrimPrefix(v, "--env=")
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file", "path", path, "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}

func WritePostgres() pg.Config {
	c := config.Get()
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

func ReadPostgres() pg.Config {
	c := config.Get()
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

func OpenDB() (*pg.DB, error) {
	return pg.CreateReadWrite(ReadPostgres(), WritePostgres(), config.Get().AppDebug)
}

func OpenRedis(connName string) (redis.RedisAdapter, error) {
	c := config.Get()
	return redis.NewRedisAdapter(connName, c.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: connName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	})
}

func RewardQueueConfig() queue.QueueConfig {
	c := config.Get()
	name := c.QueueConsumerName
	if name == "" {
		name, _ = os.Hostname()
	}
	return queue.QueueConfig{
		Name:              c.QueueName,
		ConsumerGroup:     c.QueueConsumerGroup,
		ConsumerName:      name,
		MaxRetries:        c.QueueMaxRetries,
		VisibilityTimeout: c.QueueVisibilityTimeout,
		PollInterval:      c.QueuePollInterval,
		BatchSize:         c.QueueBatchSize,
		MaxLen:            c.QueueMaxLen,
		EnableDLQ:         c.QueueEnableDLQ,
	}
}

// BankClient returns nil when no provider URL is configured.
func BankClient() (*gateways.BankClient, error) {
	c := config.Get()
	var providers []gateways.ProviderConfig
	if c.BankProviderPrimaryUrl != "" {
		providers = append(providers, gateways.ProviderConfig{Name: "primary", URL: c.BankProviderPrimaryUrl, Weight: 100})
	}
	if c.BankProviderSecondaryUrl != "" {
		providers = append(providers, gateways.ProviderConfig{Name: "secondary", URL: c.BankProviderSecondaryUrl, Weight: 70})
	}
	if len(providers) == 0 {
		return nil, nil
	}
	return gateways.NewBankClient(&gateways.Config{
		Providers:               providers,
		Timeout:                 c.BankTimeout,
		MaxRetries:              c.BankMaxRetries,
		RetryDelay:              100 * time.Millisecond,
		MaxConns:                64,
		HealthCheckInterval:     c.BankHealthInterval,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	})
}
