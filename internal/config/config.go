package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	StrategyRandom    = "random"
	StrategySnowflake = "snowflake"
)

type Config struct {
	Store string `env:"LEDGER_STORE"`

	DBConfig struct {
		Host           string `env:"LEDGER_DB_HOST"`
		Port           int    `env:"LEDGER_DB_PORT"`
		User           string `env:"LEDGER_DB_USER"`
		Password       string `env:"LEDGER_DB_PASSWORD"`
		Name           string `env:"LEDGER_DB_NAME"`
		SSLMode        string `env:"LEDGER_DB_SSLMODE"`
		MaxOpenConns   int    `env:"LEDGER_DB_MAX_OPEN_CONNS"`
		ConnectRetries int    `env:"LEDGER_DB_CONNECT_RETRIES"`
	}

	AccountNumberDigits   int    `env:"ACCOUNT_NUMBER_DIGITS"`
	AccountNumberAttempts int    `env:"ACCOUNT_NUMBER_ATTEMPTS"`
	AccountNumberStrategy string `env:"ACCOUNT_NUMBER_STRATEGY"`
	SnowflakeNode         int64  `env:"SNOWFLAKE_NODE"`

	HTTPPort int `env:"HTTP_PORT"`

	KafkaBrokerURL         string `env:"KAFKA_BROKER_URL"`
	KafkaLedgerEventsTopic string `env:"KAFKA_LEDGER_EVENTS_TOPIC"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"`

	LogLevel zapcore.Level `env:"LOG_LEVEL"`
	LogFile  string        `env:"LOG_FILE"`
}

// LoadConfig reads the environment. A value that is set but cannot be parsed fails the load.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.Store = strings.ToLower(getEnvOrDefault("LEDGER_STORE", StorePostgres))

	cfg.DBConfig.Host = getEnvOrDefault("LEDGER_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("LEDGER_DB_PORT", 5432, &errs)
	cfg.DBConfig.User = getEnvOrDefault("LEDGER_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("LEDGER_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("LEDGER_DB_NAME", "ledger_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("LEDGER_DB_SSLMODE", "disable")
	cfg.DBConfig.MaxOpenConns = getEnvAsInt("LEDGER_DB_MAX_OPEN_CONNS", 30, &errs)
	cfg.DBConfig.ConnectRetries = getEnvAsInt("LEDGER_DB_CONNECT_RETRIES", 10, &errs)

	cfg.AccountNumberDigits = getEnvAsInt("ACCOUNT_NUMBER_DIGITS", 10, &errs)
	cfg.AccountNumberAttempts = getEnvAsInt("ACCOUNT_NUMBER_ATTEMPTS", 20, &errs)
	cfg.AccountNumberStrategy = strings.ToLower(getEnvOrDefault("ACCOUNT_NUMBER_STRATEGY", StrategyRandom))
	cfg.SnowflakeNode = int64(getEnvAsInt("SNOWFLAKE_NODE", 1, &errs))

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8080, &errs)

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "")
	cfg.KafkaLedgerEventsTopic = getEnvOrDefault("KAFKA_LEDGER_EVENTS_TOPIC", "ledger.transaction.committed")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second, &errs)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond, &errs)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 10, &errs)

	level, err := zapcore.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level
	cfg.LogFile = getEnvOrDefault("LOG_FILE", "")

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Store != StoreMemory && c.Store != StorePostgres {
		errs = append(errs, fmt.Errorf("LEDGER_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if c.DBConfig.Port <= 0 || c.DBConfig.Port > 65535 {
		errs = append(errs, fmt.Errorf("LEDGER_DB_PORT out of range: %d", c.DBConfig.Port))
	}
	if c.DBConfig.ConnectRetries < 1 {
		errs = append(errs, fmt.Errorf("LEDGER_DB_CONNECT_RETRIES must be at least 1, got %d", c.DBConfig.ConnectRetries))
	}
	if c.AccountNumberDigits < 4 || c.AccountNumberDigits > 18 {
		errs = append(errs, fmt.Errorf("ACCOUNT_NUMBER_DIGITS must be between 4 and 18, got %d", c.AccountNumberDigits))
	}
	if c.AccountNumberAttempts < 1 {
		errs = append(errs, fmt.Errorf("ACCOUNT_NUMBER_ATTEMPTS must be at least 1, got %d", c.AccountNumberAttempts))
	}
	if c.AccountNumberStrategy != StrategyRandom && c.AccountNumberStrategy != StrategySnowflake {
		errs = append(errs, fmt.Errorf("ACCOUNT_NUMBER_STRATEGY must be %q or %q, got %q",
			StrategyRandom, StrategySnowflake, c.AccountNumberStrategy))
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		errs = append(errs, fmt.Errorf("SNOWFLAKE_NODE must be between 0 and 1023, got %d", c.SnowflakeNode))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.OutboxPollTimeout <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_TIMEOUT must be positive"))
	}
	if c.OutboxBatchSize < 1 {
		errs = append(errs, fmt.Errorf("OUTBOX_BATCH_SIZE must be at least 1, got %d", c.OutboxBatchSize))
	}
	return errs
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBConfig.User, c.DBConfig.Password),
		Host:     fmt.Sprintf("%s:%d", c.DBConfig.Host, c.DBConfig.Port),
		Path:     "/" + c.DBConfig.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBConfig.SSLMode),
	}
	return u.String()
}

// EventsEnabled reports whether ledger events are written to the outbox and relayed.
func (c *Config) EventsEnabled() bool {
	return strings.TrimSpace(c.KafkaBrokerURL) != ""
}

func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokerURL, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int, errs *[]error) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, valueStr))
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, valueStr))
		return defaultValue
	}
	return value
}
