//go:build integration

package migrations

import (
	"context"
	"testing"

	"github.com/weavefeed/accounts/internal/testutil"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewPostgresDB(t)

	report, err := Run(ctx, db.SQL(), db.Dialect(), CommandUp)
	if err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	if report.Version != 3 {
		t.Errorf("version = %d, want 3", report.Version)
	}

	for _, table := range []string{"users", "profiles", "auth_providers"} {
		var exists bool
		err := db.SQL().QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("tableExists failed: %v", err)
		}
		if !exists {
			t.Errorf("Table %q should exist after migrations", table)
		}
	}
}

func TestIntegrationMigration_ResetAndReapply(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewPostgresDB(t)

	if _, err := Run(ctx, db.SQL(), db.Dialect(), CommandUp); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	report, err := Run(ctx, db.SQL(), db.Dialect(), CommandReset)
	if err != nil {
		t.Fatalf("migrate reset failed: %v", err)
	}
	if report.Version != 0 {
		t.Errorf("version after reset = %d, want 0", report.Version)
	}
	if _, err := Run(ctx, db.SQL(), db.Dialect(), CommandUp); err != nil {
		t.Fatalf("reapply failed: %v", err)
	}
}
