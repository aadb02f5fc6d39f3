package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Insert describes a single-row conditional insert.
type Insert struct {
	Table           string
	Columns         []string
	Values          []any
	ConflictColumns []string
}

// InsertIfAbsent writes the row unless it would collide on ConflictColumns.
// It reports whether a row was written. Conflicts on any other unique
// constraint are returned as *ConstraintError.
func InsertIfAbsent(ctx context.Context, q DBTX, d Dialect, ins Insert) (bool, error) {
	query, err := ins.build()
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, d.Rebind(query), ins.Values...)
	if err != nil {
		return false, Classify("insert into "+ins.Table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for %s: %w", ins.Table, err)
	}
	return n == 1, nil
}

func (ins Insert) build() (string, error) {
	if ins.Table == "" || len(ins.Columns) == 0 {
		return "", errors.New("insert requires a table and columns")
	}
	if len(ins.Columns) != len(ins.Values) {
		return "", fmt.Errorf("insert into %s: %d columns but %d values", ins.Table, len(ins.Columns), len(ins.Values))
	}
	if len(ins.ConflictColumns) == 0 {
		return "", fmt.Errorf("insert into %s: conflict columns are required", ins.Table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ins.Columns)), ", ")

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		ins.Table,
		strings.Join(ins.Columns, ", "),
		placeholders,
		strings.Join(ins.ConflictColumns, ", "),
	), nil
}
