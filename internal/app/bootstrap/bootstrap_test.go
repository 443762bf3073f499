package bootstrap

import (
	"context"
	"testing"

	"ledger/internal/app/ledger"
	"ledger/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("LEDGER_STORE", "memory")
	t.Setenv("KAFKA_BROKER_URL", "")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestMemoryStorageEndToEnd(t *testing.T) {
	cfg := memoryConfig(t)
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	storage, err := OpenStorage(ctx, cfg, logger)
	require.NoError(t, err)
	defer storage.Close()
	assert.NotNil(t, storage.Outbox)

	service, err := NewLedgerService(cfg, storage.Store, logger)
	require.NoError(t, err)

	stopOutbox, err := StartOutbox(ctx, cfg, storage, logger)
	require.NoError(t, err)
	defer stopOutbox()

	account, err := service.CreateAccount(ctx, "Alice")
	require.NoError(t, err)
	assert.Len(t, account.Number, cfg.AccountNumberDigits)

	balance, err := service.Deposit(ctx, account.Number, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(5)))

	pending, err := storage.Outbox.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "events are off without a broker")
}

func TestCandidateSourceStrategy(t *testing.T) {
	cfg := memoryConfig(t)

	source, err := NewCandidateSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ledger.RandomSource{}, source)

	cfg.AccountNumberStrategy = config.StrategySnowflake
	source, err = NewCandidateSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ledger.SnowflakeSource{}, source)
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	cfg := memoryConfig(t)
	cfg.LogFile = t.TempDir() + "/ledger.log"

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
