package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schema string

type Config struct {
	URL        string
	MaxRetries int
	RetryDelay time.Duration
}

type opener func(driver, dsn string) (*sql.DB, error)

func NewPostgresDB(ctx context.Context, cfg Config, log logrus.FieldLogger) (*sql.DB, error) {
	return connect(ctx, cfg, log, sql.Open)
}

func connect(ctx context.Context, cfg Config, log logrus.FieldLogger, open opener) (*sql.DB, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	var (
		db  *sql.DB
		err error
	)

	for i := 1; i <= cfg.MaxRetries; i++ {
		log.Infof("connecting to database (attempt %d/%d)", i, cfg.MaxRetries)
		db, err = open("postgres", cfg.URL)
		if err == nil {
			err = db.PingContext(ctx)
		}

		if err == nil {
			log.Info("database connected")
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(25)
			db.SetConnMaxLifetime(5 * time.Minute)
			return db, nil
		}

		if db != nil {
			_ = db.Close()
		}
		log.WithError(err).Warnf("database not ready, retrying in %s", cfg.RetryDelay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}

	return nil, fmt.Errorf("connect database after %d attempts: %w", cfg.MaxRetries, err)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
