// Package database opens the configured store and pairs it with its dialect
// and transaction manager.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/redochen/ccnetcore/internal/config"
	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/transaction"
)

const pingTimeout = 5 * time.Second

// Store is an open database with the dialect and transaction manager serving it
type Store struct {
	DB      *sql.DB
	Dialect dialect.Dialect
	Tx      *transaction.Manager
}

// Open connects with cfg and verifies the connection. The dialect comes from
// cfg.Dialect when set, otherwise from the driver name.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d, err := resolveDialect(cfg, log)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	configurePool(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database opened",
		zap.String("driver", cfg.Driver),
		zap.String("dialect", d.Name()))

	return &Store{
		DB:      db,
		Dialect: d,
		Tx: transaction.NewManager(db,
			transaction.WithLogger(log),
			transaction.WithStatementTimeout(cfg.StatementTimeout)),
	}, nil
}

// Close closes the underlying pool
func (s *Store) Close() error {
	return s.DB.Close()
}

func resolveDialect(cfg config.DatabaseConfig, log *zap.Logger) (dialect.Dialect, error) {
	if cfg.Dialect != "" {
		return dialect.Get(cfg.Dialect, dialect.WithLogger(log))
	}
	return dialect.ForDriver(cfg.Driver, dialect.WithLogger(log))
}

// configurePool applies pool limits. An in-memory SQLite database lives in a
// single connection, so it is pinned to one.
func configurePool(db *sql.DB, cfg config.DatabaseConfig) {
	if isMemorySQLite(cfg) {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		return
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
}

func isMemorySQLite(cfg config.DatabaseConfig) bool {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		return strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory")
	}
	return false
}
