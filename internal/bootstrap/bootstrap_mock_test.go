package bootstrap

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavefeed/accounts/internal/database"
	"github.com/weavefeed/accounts/internal/logging"
	"github.com/weavefeed/accounts/internal/schema"
)

func expectLockAndSchema(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	stmts, err := schema.Statements(database.Postgres)
	require.NoError(t, err)
	for _, stmt := range stmts {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func TestBootstrap_PingFailureIsConnectivityError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	mock.ExpectPing().WillReturnError(refused)

	b := New(db, database.Postgres, testSeed, logging.Discard(), nil, WithHasher(testHasher))
	_, err = b.Bootstrap(context.Background())

	require.Error(t, err)
	assert.True(t, database.IsConnectivity(err), "want ConnectivityError, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_BeginFailureIsConnectivityError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(&pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"})

	b := New(db, database.Postgres, testSeed, logging.Discard(), nil, WithHasher(testHasher))
	_, err = b.Bootstrap(context.Background())

	var ce *database.ConnectivityError
	require.ErrorAs(t, err, &ce)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_UnexpectedConstraintRollsBack(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectLockAndSchema(t, mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			Message:        "duplicate key value violates unique constraint \"uq_users_email\"",
			ConstraintName: "uq_users_email",
			TableName:      "users",
		})
	mock.ExpectRollback()

	b := New(db, database.Postgres, testSeed, logging.Discard(), nil, WithHasher(testHasher))
	_, err = b.Bootstrap(context.Background())

	var ce *database.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "uq_users_email", ce.Constraint)
	assert.True(t, ce.Unique())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_ConnectionLostMidTransaction(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectLockAndSchema(t, mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles")).
		WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})
	mock.ExpectRollback()

	b := New(db, database.Postgres, testSeed, logging.Discard(), nil, WithHasher(testHasher))
	_, err = b.Bootstrap(context.Background())

	assert.True(t, database.IsConnectivity(err), "want ConnectivityError, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_CommitFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	expectLockAndSchema(t, mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "08003", Message: "connection does not exist"})

	b := New(db, database.Postgres, testSeed, logging.Discard(), nil, WithHasher(testHasher))
	_, err = b.Bootstrap(context.Background())

	assert.True(t, database.IsConnectivity(err), "want ConnectivityError, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
