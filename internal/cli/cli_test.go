package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavefeed/accounts/internal/auth"
	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/health"
	"github.com/weavefeed/accounts/internal/migrations"
	"github.com/weavefeed/accounts/internal/model"
	"github.com/weavefeed/accounts/internal/service"
)

var fastParams = auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type run struct {
	stdout string
	stderr string
	err    error
}

func sqliteEnv(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"WEAVEFEED_ACCOUNTS_DB_DRIVER":      "sqlite",
		"WEAVEFEED_ACCOUNTS_DB_PATH":        filepath.Join(t.TempDir(), "accounts.db"),
		"WEAVEFEED_ACCOUNTS_ADMIN_PASSWORD": "correct-horse-battery",
		"WEAVEFEED_ACCOUNTS_LOG_LEVEL":      "debug",
	}
}

func execute(t *testing.T, env map[string]string, stdin string, args ...string) run {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(Options{
		Version:     "test",
		Stdin:       strings.NewReader(stdin),
		Stdout:      &stdout,
		Stderr:      &stderr,
		Environment: env,
		Hasher:      auth.NewHasher(fastParams),
	})
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return run{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestBootstrapCommand(t *testing.T) {
	t.Parallel()
	env := sqliteEnv(t)

	first := execute(t, env, "", "bootstrap")
	require.NoError(t, first.err, first.stderr)

	var res struct {
		RunID       string `json:"run_id"`
		UserID      string `json:"user_id"`
		UserCreated bool   `json:"user_created"`
	}
	require.NoError(t, json.Unmarshal([]byte(first.stdout), &res))
	assert.True(t, res.UserCreated)
	assert.NotEmpty(t, res.RunID)

	second := execute(t, env, "", "bootstrap")
	require.NoError(t, second.err, second.stderr)

	var again struct {
		UserID      string `json:"user_id"`
		UserCreated bool   `json:"user_created"`
	}
	require.NoError(t, json.Unmarshal([]byte(second.stdout), &again))
	assert.False(t, again.UserCreated)
	assert.Equal(t, res.UserID, again.UserID)
}

func TestBootstrapCommandWithMigrate(t *testing.T) {
	t.Parallel()
	env := sqliteEnv(t)

	out := execute(t, env, "", "bootstrap", "--migrate")
	require.NoError(t, out.err, out.stderr)

	status := execute(t, env, "", "migrate", "status")
	require.NoError(t, status.err, status.stderr)

	var report migrations.Report
	require.NoError(t, json.Unmarshal([]byte(status.stdout), &report))
	require.NotEmpty(t, report.Status)
	for _, s := range report.Status {
		assert.True(t, s.Applied, "migration %d not applied", s.Version)
	}
	assert.Equal(t, report.Status[len(report.Status)-1].Version, report.Version)
}

func TestMigrateCommand(t *testing.T) {
	t.Parallel()
	env := sqliteEnv(t)

	up := execute(t, env, "", "migrate")
	require.NoError(t, up.err, up.stderr)

	var report migrations.Report
	require.NoError(t, json.Unmarshal([]byte(up.stdout), &report))
	assert.Equal(t, migrations.CommandUp, report.Command)
	assert.NotEmpty(t, report.Applied)

	bad := execute(t, env, "", "migrate", "sideways")
	assert.Error(t, bad.err)
}

func TestUserCommands(t *testing.T) {
	t.Parallel()
	env := sqliteEnv(t)

	require.NoError(t, execute(t, env, "", "bootstrap").err)

	created := execute(t, env, "s3cret-passw0rd\n",
		"user", "create", "--username", "alice", "--email", "alice@example.com")
	require.NoError(t, created.err, created.stderr)
	assert.Contains(t, created.stderr, "Password: ")

	var acct model.Account
	require.NoError(t, json.Unmarshal([]byte(created.stdout), &acct))
	assert.Equal(t, "alice", acct.User.Username)
	require.NotNil(t, acct.Profile)
	assert.Equal(t, "alice", acct.Profile.DisplayName)
	assert.NotContains(t, created.stdout, "s3cret-passw0rd")

	login := execute(t, env, "", "user", "login", "--login", "alice@example.com", "--password", "s3cret-passw0rd")
	require.NoError(t, login.err, login.stderr)

	var user model.User
	require.NoError(t, json.Unmarshal([]byte(login.stdout), &user))
	assert.Equal(t, acct.User.ID, user.ID)
	assert.NotNil(t, user.LastLogin)

	wrong := execute(t, env, "", "user", "login", "--login", "alice", "--password", "nope-nope-nope")
	assert.True(t, errors.Is(wrong.err, service.ErrInvalidCredentials))

	show := execute(t, env, "", "user", "show", "admin")
	require.NoError(t, show.err, show.stderr)

	var admin model.Account
	require.NoError(t, json.Unmarshal([]byte(show.stdout), &admin))
	assert.Equal(t, "admin", admin.User.Username)
	assert.True(t, admin.User.IsVerified)
	require.NotNil(t, admin.Profile)
	assert.Equal(t, "Administrator", admin.Profile.DisplayName)

	dup := execute(t, env, "", "user", "create", "--username", "alice", "--email", "other@example.com", "--password", "another-password")
	assert.True(t, errors.Is(dup.err, service.ErrUsernameExists))
}

func TestUserCreateRequiresFlags(t *testing.T) {
	t.Parallel()

	out := execute(t, sqliteEnv(t), "", "user", "create", "--username", "bob")
	require.Error(t, out.err)
	assert.Contains(t, out.err.Error(), "email")
}

func TestHealthCommand(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		env := sqliteEnv(t)
		require.NoError(t, execute(t, env, "", "bootstrap").err)

		out := execute(t, env, "", "health")
		require.NoError(t, out.err, out.stderr)

		var report health.Report
		require.NoError(t, json.Unmarshal([]byte(out.stdout), &report))
		assert.Equal(t, health.StatusHealthy, report.Status)
		assert.Equal(t, "test", report.Version)
	})

	t.Run("database unreachable", func(t *testing.T) {
		t.Parallel()
		env := sqliteEnv(t)
		env["WEAVEFEED_ACCOUNTS_DB_PATH"] = filepath.Join(t.TempDir(), "missing", "dir", "accounts.db")

		out := execute(t, env, "", "health")
		require.ErrorIs(t, out.err, errCritical)

		var report health.Report
		require.NoError(t, json.Unmarshal([]byte(out.stdout), &report))
		assert.Equal(t, health.StatusCritical, report.Status)
		assert.Equal(t, health.LevelFullyDegraded, report.Dependencies[health.ComponentDatabase])
	})
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()
	env := sqliteEnv(t)
	env["WEAVEFEED_ACCOUNTS_LOG_LEVEL"] = "loud"

	out := execute(t, env, "", "bootstrap")
	require.Error(t, out.err)
	assert.Contains(t, out.err.Error(), "invalid log level")
}

func TestUnreachablePostgresKeepsConnectivityError(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"WEAVEFEED_ACCOUNTS_DB_DRIVER":          "postgres",
		"WEAVEFEED_ACCOUNTS_DB_HOST":            "127.0.0.1",
		"WEAVEFEED_ACCOUNTS_DB_PORT":            "1",
		"WEAVEFEED_ACCOUNTS_DB_USER":            "accounts",
		"WEAVEFEED_ACCOUNTS_DB_PASSWORD":        "s3cret-db-pw",
		"WEAVEFEED_ACCOUNTS_DB_NAME":            "accounts",
		"WEAVEFEED_ACCOUNTS_DB_CONNECT_TIMEOUT": "1s",
	}

	for _, args := range [][]string{
		{"bootstrap"},
		{"migrate", "status"},
		{"user", "show", "admin"},
	} {
		args := args
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			t.Parallel()

			out := execute(t, env, "", args...)
			require.Error(t, out.err)

			var connErr *database.ConnectivityError
			assert.True(t, errors.As(out.err, &connErr), "got %T: %v", out.err, out.err)
			assert.True(t, database.IsConnectivity(out.err))
			assert.NotContains(t, out.err.Error(), "s3cret-db-pw")
			assert.NotContains(t, out.stderr, "s3cret-db-pw")
		})
	}
}

func TestLogLevelFlag(t *testing.T) {
	t.Parallel()

	t.Run("rejects unknown level", func(t *testing.T) {
		t.Parallel()

		out := execute(t, sqliteEnv(t), "", "--log-level", "verbose", "bootstrap")
		require.Error(t, out.err)
		assert.Contains(t, out.err.Error(), "invalid log level")
		assert.Empty(t, out.stdout)
	})

	t.Run("overrides configured level", func(t *testing.T) {
		t.Parallel()

		out := execute(t, sqliteEnv(t), "", "--log-level", "error", "bootstrap")
		require.NoError(t, out.err, out.stderr)
		assert.NotContains(t, out.stderr, "bootstrap complete")
	})
}
