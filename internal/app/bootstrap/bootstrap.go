package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledger/internal/app/ledger"
	"ledger/internal/config"
	"ledger/internal/infrastructure/database"
	kafka_infra "ledger/internal/infrastructure/kafka"
	"ledger/internal/outbox"
	"ledger/internal/repository/ledger_repo"
	"ledger/internal/repository/ledger_repo/memory"
	"ledger/internal/repository/ledger_repo/postgres"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const connectRetryDelay = 5 * time.Second

// Storage is the store chosen by LEDGER_STORE together with its outbox side.
type Storage struct {
	Store  ledger_repo.Store
	Outbox ledger_repo.OutboxRepository
	db     *sql.DB
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewLogger builds the production zap logger. An empty LOG_FILE keeps the default stderr sink.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	if cfg.LogFile != "" {
		zapConfig.OutputPaths = []string{cfg.LogFile}
		zapConfig.ErrorOutputPaths = []string{cfg.LogFile}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return logger, nil
}

func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Storage, error) {
	if cfg.Store == config.StoreMemory {
		logger.Info("Using in-memory ledger store")
		store := memory.NewStore()
		return &Storage{Store: store, Outbox: store}, nil
	}

	logger.Info("Waiting for database to be available...")
	db, err := database.ConnectWithRetry(ctx,
		cfg.GetDBConnectionString(),
		cfg.DBConfig.MaxOpenConns,
		cfg.DBConfig.ConnectRetries,
		connectRetryDelay,
		logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Running database migrations...")
	if err := database.RunMigrations(cfg.GetDBMigrationConnectionString(), logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	repo := postgres.NewLedgerRepository(db)
	return &Storage{Store: repo, Outbox: repo, db: db}, nil
}

func NewCandidateSource(cfg *config.Config) (ledger.CandidateSource, error) {
	if cfg.AccountNumberStrategy == config.StrategySnowflake {
		source, err := ledger.NewSnowflakeSource(cfg.SnowflakeNode)
		if err != nil {
			return nil, err
		}
		return source, nil
	}
	source, err := ledger.NewRandomSource(cfg.AccountNumberDigits)
	if err != nil {
		return nil, err
	}
	return source, nil
}

func NewLedgerService(cfg *config.Config, store ledger_repo.Store, logger *zap.Logger) (ledger.LedgerService, error) {
	source, err := NewCandidateSource(cfg)
	if err != nil {
		return nil, err
	}

	allocator := ledger.NewAllocator(source, store, cfg.AccountNumberAttempts,
		logger.With(zap.String("component", "AccountAllocator")))
	engine := ledger.NewEngine(store, allocator,
		logger.With(zap.String("component", "TransactionEngine")),
		ledger.WithOutboxEvents(cfg.EventsEnabled()))
	queries := ledger.NewQueries(store, logger.With(zap.String("component", "LedgerQueries")))

	return ledger.NewLedgerService(engine, queries), nil
}

// StartOutbox ensures the events topic and runs the outbox processor until ctx ends. It
// returns a function that closes the producer once the processor has stopped. With events
// disabled it does nothing.
func StartOutbox(ctx context.Context, cfg *config.Config, storage *Storage, logger *zap.Logger) (func(), error) {
	if !cfg.EventsEnabled() {
		logger.Info("Kafka broker not configured, ledger events disabled")
		return func() {}, nil
	}

	brokers := cfg.GetKafkaBrokers()
	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := kafka_infra.EnsureTopics(topicCtx, brokers, []string{cfg.KafkaLedgerEventsTopic}, logger); err != nil {
		return nil, err
	}

	producer := kafka_infra.NewProducer(brokers, logger.With(zap.String("component", "KafkaProducer")))
	processor := outbox.NewProcessor(
		storage.Outbox,
		producer,
		cfg.KafkaLedgerEventsTopic,
		cfg.OutboxPollInterval,
		cfg.OutboxPollTimeout,
		cfg.OutboxBatchSize,
		logger.With(zap.String("component", "OutboxProcessor")),
	)
	go processor.Run(ctx)

	return func() {
		processor.Stop()
		select {
		case <-processor.Done():
		case <-time.After(5 * time.Second):
			logger.Warn("Outbox processor did not stop cleanly within 5 seconds")
		}
		if err := producer.Close(); err != nil {
			logger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}, nil
}
