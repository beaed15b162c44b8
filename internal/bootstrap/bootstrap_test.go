package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nimasrn/dv-referral-ledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_ENV=test\n"), 0o600))

	assert.Equal(t, path, EnvPath([]string{"api", "--env=" + path}))
	assert.Empty(t, EnvPath([]string{"api", "--env=" + path + ".missing"}))
	assert.Empty(t, EnvPath([]string{"api"}))
}

func TestRewardQueueConfig(t *testing.T) {
	config.Set(&config.Config{
		QueueName:          "referral:rewards",
		QueueConsumerGroup: "reward-processors",
		QueueConsumerName:  "node-a",
		QueueMaxRetries:    5,
		QueueEnableDLQ:     true,
	})

	cfg := RewardQueueConfig()
	assert.Equal(t, "referral:rewards", cfg.Name)
	assert.Equal(t, "node-a", cfg.ConsumerName)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.True(t, cfg.EnableDLQ)
}

func TestBankClient(t *testing.T) {
	config.Set(&config.Config{})
	c, err := BankClient()
	require.NoError(t, err)
	assert.Nil(t, c)

	config.Set(&config.Config{BankProviderPrimaryUrl: "http://127.0.0.1:1", BankMaxRetries: 1})
	c, err = BankClient()
	require.NoError(t, err)
	require.NotNil(t, c)
	c.Close()
}
