// Package database opens the accounts store and defines the error taxonomy and
// conditional-write primitive shared by every component that touches it.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/weavefeed/accounts/internal/config"
)

// DB is an open accounts database together with its dialect.
type DB struct {
	sql     *sql.DB
	dialect Dialect
	pool    *pgxpool.Pool
}

// Open connects using cfg and verifies the connection.
// Unreachable databases yield a *ConnectivityError.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN(), cfg.MaxConns, cfg.MinConns, cfg.ConnectTimeout)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenPostgres creates a pgx pool and exposes it through database/sql.
func OpenPostgres(ctx context.Context, dsn string, maxConns, minConns int32, connectTimeout time.Duration) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	// Connection pool settings
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	if connectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = connectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, ClassifyConnect("create connection pool", err)
	}

	db := &DB{
		sql:     stdlib.OpenDBFromPool(pool),
		dialect: Postgres,
		pool:    pool,
	}

	// Verify connection
	if err := db.ping(ctx, connectTimeout); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB, dialect: SQLite}
	if err := db.ping(ctx, 0); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewFromSQL wraps an existing handle. Used by tests and tools that manage
// their own connections.
func NewFromSQL(db *sql.DB, dialect Dialect) *DB {
	return &DB{sql: db, dialect: dialect}
}

func (d *DB) ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := d.sql.PingContext(ctx); err != nil {
		return ClassifyConnect("ping", err)
	}
	return nil
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.ping(ctx, 0)
}

// SQL returns the database/sql handle.
func (d *DB) SQL() *sql.DB {
	return d.sql
}

// Dialect returns the SQL dialect of the connection.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Close releases the database handle and, for PostgreSQL, the pool behind it.
func (d *DB) Close() error {
	err := d.sql.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}
