// Package repository provides database access layer.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/weavefeed/accounts/internal/database"
)

// Repository provides database access methods.
type Repository struct {
	db      *sql.DB
	q       database.DBTX
	dialect database.Dialect
}

// New creates a Repository over db.
func New(db *sql.DB, dialect database.Dialect) *Repository {
	return &Repository{db: db, q: db, dialect: dialect}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return errors.New("repository is bound to a transaction")
	}
	if err := r.db.PingContext(ctx); err != nil {
		return database.ClassifyConnect("ping", err)
	}
	return nil
}

// Dialect returns the SQL dialect queries are written for.
func (r *Repository) Dialect() database.Dialect {
	return r.dialect
}

// WithTx runs fn with a Repository bound to a single transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&Repository{q: tx, dialect: r.dialect})
	})
}

// Bind returns a Repository that issues its queries through q, typically an
// already open transaction.
func (r *Repository) Bind(q database.DBTX) *Repository {
	return &Repository{q: q, dialect: r.dialect}
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := r.q.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, database.Classify(op, err))
	}
	return res, nil
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

func (r *Repository) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := r.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, database.Classify(op, err))
	}
	return n, nil
}
