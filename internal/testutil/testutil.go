// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/model"
	"github.com/weavefeed/accounts/internal/schema"
)

// Environment variables that enable integration tests.
const (
	EnvDatabaseURL = "WEAVEFEED_TEST_DATABASE_URL"
	EnvRedisURL    = "WEAVEFEED_TEST_REDIS_URL"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// NewSQLiteDB opens an empty SQLite database in a per-test directory.
func NewSQLiteDB(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// NewSQLiteDBWithSchema is NewSQLiteDB with the baseline schema applied.
func NewSQLiteDBWithSchema(t testing.TB) *database.DB {
	t.Helper()

	db := NewSQLiteDB(t)
	if err := schema.Apply(context.Background(), db.SQL(), db.Dialect()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// NewPostgresDB connects to the integration database, serialises the test
// against other database tests and drops the accounts tables.
func NewPostgresDB(t testing.TB) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	dsn := RequireEnv(t, EnvDatabaseURL)
	ctx := context.Background()

	db, err := database.OpenPostgres(ctx, dsn, 4, 0, 5*time.Second)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	unlock, err := AcquireDBLock(ctx, db.SQL())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := ResetSchema(ctx, db.SQL()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return db
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, db *sql.DB) (func() error, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Close()
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops the accounts tables and the goose version table.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	if err := schema.Drop(ctx, db); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS goose_db_version"); err != nil {
		return fmt.Errorf("drop goose version table: %w", err)
	}
	return nil
}

// NewRedisClient connects to the integration Redis and flushes it.
func NewRedisClient(t testing.TB) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	opts, err := redis.ParseURL(RequireEnv(t, EnvRedisURL))
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() {
		_ = client.Close()
	})

	if err := FlushRedis(context.Background(), client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return client
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

var seq atomic.Int64

// UniqueName generates a unique, username-safe name for tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, seq.Add(1))
}

// NewTestUser creates an active, unverified user with sensible defaults.
func NewTestUser(t testing.TB, username string) *model.User {
	t.Helper()
	return model.NewUser(username, username+"@example.com", time.Now())
}

// NewTestUserWithHash creates a test user holding passwordHash.
func NewTestUserWithHash(t testing.TB, username, passwordHash string) *model.User {
	t.Helper()
	user := NewTestUser(t, username)
	user.SetPasswordHash(passwordHash)
	return user
}
