package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func NewPostgresDB(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = 30
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(15 * time.Minute)

	return db, nil
}

// ConnectWithRetry keeps trying until the database answers, the attempts run out or ctx ends.
func ConnectWithRetry(ctx context.Context, dsn string, maxOpenConns, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*sql.DB, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := NewPostgresDB(ctx, dsn, maxOpenConns)
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL database")
			return db, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))

		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to postgres: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, lastErr)
}
