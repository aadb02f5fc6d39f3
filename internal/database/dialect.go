package database

import (
	"strconv"
	"strings"
)

// advisoryLockKey serialises schema bootstrap across processes on PostgreSQL.
const advisoryLockKey int64 = 7_311_240_901

// Dialect captures the SQL differences between supported engines.
type Dialect struct {
	// Name is the driver name, "postgres" or "sqlite".
	Name string
	// Goose is the dialect name understood by goose.
	Goose string

	numbered bool
	lock     string
}

var (
	// Postgres uses $n placeholders and a transaction-scoped advisory lock.
	Postgres = Dialect{
		Name:     "postgres",
		Goose:    "postgres",
		numbered: true,
		lock:     "SELECT pg_advisory_xact_lock($1)",
	}

	// SQLite uses ? placeholders; its writer lock already serialises transactions.
	SQLite = Dialect{
		Name:  "sqlite",
		Goose: "sqlite3",
	}
)

// DialectFor returns the dialect for a configured driver name.
func DialectFor(driver string) (Dialect, bool) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	default:
		return Dialect{}, false
	}
}

// Rebind rewrites ? placeholders into the dialect's native form.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// LockStatement returns the statement taking the bootstrap lock inside a
// transaction, and its arguments. An empty statement means no lock is needed.
func (d Dialect) LockStatement() (string, []any) {
	if d.lock == "" {
		return "", nil
	}
	return d.lock, []any{advisoryLockKey}
}
