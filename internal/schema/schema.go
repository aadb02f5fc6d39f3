// Package schema holds the baseline accounts schema: users, profiles and
// auth_providers.
package schema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/weavefeed/accounts/internal/database"
)

//go:embed postgres.sql
var postgresDDL string

//go:embed sqlite.sql
var sqliteDDL string

// Tables lists the baseline tables in creation order.
var Tables = []string{"users", "profiles", "auth_providers"}

// Statements returns the baseline DDL for the dialect, one statement per entry.
func Statements(d database.Dialect) ([]string, error) {
	var ddl string
	switch d.Name {
	case database.Postgres.Name:
		ddl = postgresDDL
	case database.SQLite.Name:
		ddl = sqliteDDL
	default:
		return nil, fmt.Errorf("no baseline schema for dialect %q", d.Name)
	}

	var stmts []string
	for _, stmt := range strings.Split(ddl, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

// Apply creates any missing baseline tables. Every statement is IF NOT EXISTS,
// so applying over an existing schema is a no-op.
func Apply(ctx context.Context, q database.DBTX, d database.Dialect) error {
	stmts, err := Statements(d)
	if err != nil {
		return err
	}

	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply baseline schema: %w", database.Classify("create schema", err))
		}
	}
	return nil
}

// Drop removes the baseline tables in dependency order.
func Drop(ctx context.Context, q database.DBTX) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+Tables[i]); err != nil {
			return fmt.Errorf("failed to drop %s: %w", Tables[i], database.Classify("drop schema", err))
		}
	}
	return nil
}
