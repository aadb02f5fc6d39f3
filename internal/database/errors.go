package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConnectivityError means the database could not be reached or refused the session.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("database unreachable during %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// ConstraintError is an integrity violation the caller did not anticipate.
type ConstraintError struct {
	Op         string
	Constraint string
	Table      string
	Code       string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("constraint %s violated during %s: %v", e.Constraint, e.Op, e.Err)
	}
	return fmt.Sprintf("constraint violated during %s: %v", e.Op, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Unique reports whether the violation is a uniqueness conflict.
func (e *ConstraintError) Unique() bool {
	return e.Code == "23505" || e.Code == "sqlite:unique" || e.Code == "sqlite:primarykey"
}

// Involves reports whether the violated constraint names the given column.
func (e *ConstraintError) Involves(column string) bool {
	return strings.Contains(strings.ToLower(e.Constraint), strings.ToLower(column))
}

// IsConnectivity reports whether err is, or wraps, a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// IsConstraint reports whether err is, or wraps, a ConstraintError.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// Classify maps driver errors onto ConnectivityError and ConstraintError.
// Errors that fit neither are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var connErr *ConnectivityError
	var consErr *ConstraintError
	if errors.As(err, &connErr) || errors.As(err, &consErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return &ConstraintError{
				Op:         op,
				Constraint: pgErr.ConstraintName,
				Table:      pgErr.TableName,
				Code:       pgErr.Code,
				Err:        err,
			}
		// 08: connection exception, 28: invalid authorization,
		// 3D000: unknown database, 57P0x: server shutting down or starting.
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "28"),
			pgErr.Code == "3D000",
			strings.HasPrefix(pgErr.Code, "57P0"):
			return &ConnectivityError{Op: op, Err: err}
		}
		return err
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return &ConstraintError{
				Op:         op,
				Constraint: sqliteConstraintName(sqliteErr.Error()),
				Table:      sqliteTableName(sqliteErr.Error()),
				Code:       sqliteConstraintCode(code, sqliteErr.Error()),
				Err:        err,
			}
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR:
			return &ConnectivityError{Op: op, Err: err}
		}
		return err
	}

	var pgConnErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &pgConnErr),
		errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return &ConnectivityError{Op: op, Err: err}
	}

	return err
}

// ClassifyConnect is Classify for connection setup, where a deadline means the
// server never answered.
func ClassifyConnect(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ConnectivityError{Op: op, Err: err}
	}
	classified := Classify(op, err)
	if IsConnectivity(classified) || IsConstraint(classified) {
		return classified
	}
	return &ConnectivityError{Op: op, Err: err}
}

func sqliteConstraintCode(code int, msg string) string {
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, strings.Contains(msg, "UNIQUE constraint failed"):
		return "sqlite:unique"
	case code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return "sqlite:primarykey"
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return "sqlite:foreignkey"
	case code == sqlite3.SQLITE_CONSTRAINT_NOTNULL, strings.Contains(msg, "NOT NULL constraint failed"):
		return "sqlite:notnull"
	case code == sqlite3.SQLITE_CONSTRAINT_CHECK:
		return "sqlite:check"
	default:
		return "sqlite:constraint"
	}
}

// sqliteConstraintName extracts "users.email" from
// "UNIQUE constraint failed: users.email (2067)".
func sqliteConstraintName(msg string) string {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	name := msg[i+len(marker):]
	if j := strings.IndexAny(name, " ("); j >= 0 {
		name = name[:j]
	}
	return strings.TrimRight(name, ",")
}

func sqliteTableName(msg string) string {
	name := sqliteConstraintName(msg)
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return ""
}
