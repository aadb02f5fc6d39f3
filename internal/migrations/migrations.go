// Package migrations versions the accounts schema with goose.
//
// Version 1 is the baseline schema shared with the bootstrapper; later versions
// are SQL files per dialect.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/schema"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// BaselineVersion is the goose version of the baseline schema.
const BaselineVersion int64 = 1

// Commands accepted by Run.
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandStatus  = "status"
	CommandVersion = "version"
	CommandReset   = "reset"
)

// Status describes one known migration.
type Status struct {
	Version   int64     `json:"version"`
	Source    string    `json:"source"`
	Applied   bool      `json:"applied"`
	AppliedAt time.Time `json:"applied_at,omitempty"`
}

// Result describes one applied or rolled back migration.
type Result struct {
	Version   int64         `json:"version"`
	Source    string        `json:"source"`
	Direction string        `json:"direction"`
	Duration  time.Duration `json:"duration"`
}

// Report is the outcome of a Run.
type Report struct {
	Command string   `json:"command"`
	Version int64    `json:"version"`
	Applied []Result `json:"applied,omitempty"`
	Status  []Status `json:"status,omitempty"`
}

// NewProvider returns a goose provider for the dialect's migrations.
func NewProvider(db *sql.DB, d database.Dialect) (*goose.Provider, error) {
	var dialect goose.Dialect
	switch d.Name {
	case database.Postgres.Name:
		dialect = goose.DialectPostgres
	case database.SQLite.Name:
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", d.Name)
	}

	fsys, err := fs.Sub(files, d.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", d.Name, err)
	}

	baseline := goose.NewGoMigration(
		BaselineVersion,
		&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			return schema.Apply(ctx, tx, d)
		}},
		&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			return schema.Drop(ctx, tx)
		}},
	)

	provider, err := goose.NewProvider(dialect, db, fsys, goose.WithGoMigrations(baseline))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Run executes a migration command against db.
func Run(ctx context.Context, db *sql.DB, d database.Dialect, command string) (*Report, error) {
	provider, err := NewProvider(db, d)
	if err != nil {
		return nil, err
	}

	report := &Report{Command: command}

	switch command {
	case CommandUp:
		results, err := provider.Up(ctx)
		report.Applied = convertResults(results)
		if err != nil {
			return report, fmt.Errorf("failed to apply migrations: %w", database.Classify("migrate up", err))
		}
	case CommandDown:
		result, err := provider.Down(ctx)
		if result != nil {
			report.Applied = convertResults([]*goose.MigrationResult{result})
		}
		if err != nil {
			return report, fmt.Errorf("failed to roll back migration: %w", database.Classify("migrate down", err))
		}
	case CommandReset:
		results, err := provider.DownTo(ctx, 0)
		report.Applied = convertResults(results)
		if err != nil {
			return report, fmt.Errorf("failed to reset migrations: %w", database.Classify("migrate reset", err))
		}
	case CommandStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to read migration status: %w", database.Classify("migrate status", err))
		}
		report.Status = convertStatuses(statuses)
	case CommandVersion:
	default:
		return nil, fmt.Errorf("unknown migrate command %q", command)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read schema version: %w", database.Classify("migrate version", err))
	}
	report.Version = version

	return report, nil
}

func convertResults(results []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Result{
			Version:   r.Source.Version,
			Source:    sourceName(r.Source),
			Direction: r.Direction,
			Duration:  r.Duration,
		})
	}
	return out
}

func convertStatuses(statuses []*goose.MigrationStatus) []Status {
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		if s == nil || s.Source == nil {
			continue
		}
		out = append(out, Status{
			Version:   s.Source.Version,
			Source:    sourceName(s.Source),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out
}

func sourceName(src *goose.Source) string {
	if src.Path != "" {
		return src.Path
	}
	if src.Version == BaselineVersion {
		return "baseline"
	}
	return fmt.Sprintf("go:%d", src.Version)
}
