package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrColumnNotFound is returned when a rename or value operation names a
// column the table does not have
var ErrColumnNotFound = errors.New("column not found")

// ErrColumnExists is returned when a rename target is already used by a
// column that is not itself being renamed
var ErrColumnExists = errors.New("column already exists")

// SQLTable exposes the column labels and values of one table so they can be
// cleaned in place
type SQLTable struct {
	db     *sqlx.DB
	schema string
	table  string
	logger *zap.Logger
}

// NewSQLTable binds a table. schema may be empty to use the connection default.
func NewSQLTable(db *sqlx.DB, schema, table string, logger *zap.Logger) *SQLTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLTable{
		db:     db,
		schema: schema,
		table:  table,
		logger: logger.With(zap.String("table", joinName(schema, table))),
	}
}

func joinName(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

// FullName returns the schema-qualified, unquoted table name
func (t *SQLTable) FullName() string {
	return joinName(t.schema, t.table)
}

func (t *SQLTable) quotedName() string {
	if t.schema == "" {
		return pq.QuoteIdentifier(t.table)
	}
	return pq.QuoteIdentifier(t.schema) + "." + pq.QuoteIdentifier(t.table)
}

// ColumnNames returns the table's column labels in table order
func (t *SQLTable) ColumnNames(ctx context.Context) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", t.quotedName()))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", t.FullName(), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", t.FullName(), err)
	}
	return cols, nil
}

// RenameColumns applies an old→new mapping in a single transaction. When a
// target collides with a column that is itself being renamed, every column
// is first moved to a temporary name.
func (t *SQLTable) RenameColumns(ctx context.Context, mapping map[string]string) (err error) {
	if len(mapping) == 0 {
		return nil
	}

	current, err := t.ColumnNames(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(current))
	for _, c := range current {
		existing[c] = true
	}

	// deterministic statement order
	sources := make([]string, 0, len(mapping))
	for old := range mapping {
		if !existing[old] {
			return fmt.Errorf("%w: %q in %s", ErrColumnNotFound, old, t.FullName())
		}
		if mapping[old] != old {
			sources = append(sources, old)
		}
	}
	sort.Strings(sources)

	twoPhase := false
	for _, old := range sources {
		target := mapping[old]
		if !existing[target] {
			continue
		}
		if moving, ok := mapping[target]; !ok || moving == target {
			return fmt.Errorf("%w: %q in %s", ErrColumnExists, target, t.FullName())
		}
		twoPhase = true
	}
	if len(sources) == 0 {
		return nil
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				t.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	if twoPhase {
		temp := make(map[string]string, len(sources))
		prefix := "__cn_tmp_" + strings.ReplaceAll(uuid.New().String(), "-", "")
		for i, old := range sources {
			temp[old] = fmt.Sprintf("%s_%d", prefix, i)
			if err = t.renameColumn(ctx, tx, old, temp[old]); err != nil {
				return err
			}
		}
		for _, old := range sources {
			if err = t.renameColumn(ctx, tx, temp[old], mapping[old]); err != nil {
				return err
			}
		}
	} else {
		for _, old := range sources {
			if err = t.renameColumn(ctx, tx, old, mapping[old]); err != nil {
				return err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit renames: %w", err)
	}

	t.logger.Info("Renamed columns",
		zap.Int("count", len(sources)),
		zap.Bool("two_phase", twoPhase))
	return nil
}

func (t *SQLTable) renameColumn(ctx context.Context, tx *sqlx.Tx, from, to string) error {
	stmt := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		t.quotedName(), pq.QuoteIdentifier(from), pq.QuoteIdentifier(to))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to rename column %q to %q: %w", from, to, err)
	}
	return nil
}

// ValueCounts returns the number of rows holding each distinct non-NULL
// value of column
func (t *SQLTable) ValueCounts(ctx context.Context, column string) (map[string]int64, error) {
	if err := t.requireColumn(ctx, column); err != nil {
		return nil, err
	}

	col := pq.QuoteIdentifier(column)
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s WHERE %s IS NOT NULL GROUP BY %s",
		col, t.quotedName(), col, col)
	rows, err := t.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read values of %s.%s: %w", t.FullName(), column, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			value string
			n     int64
		)
		if err := rows.Scan(&value, &n); err != nil {
			return nil, fmt.Errorf("failed to scan value of %s.%s: %w", t.FullName(), column, err)
		}
		counts[value] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating values of %s.%s: %w", t.FullName(), column, err)
	}
	return counts, nil
}

// ReplaceValues rewrites every row whose column equals a mapping key to the
// mapped value, in one transaction. Each row is rewritten at most once: when
// a target is itself a key, rows are first moved to temporary values.
// It returns the number of rows updated.
func (t *SQLTable) ReplaceValues(ctx context.Context, column string, mapping map[string]string) (affected int64, err error) {
	olds := make([]string, 0, len(mapping))
	for old, target := range mapping {
		if old != target {
			olds = append(olds, old)
		}
	}
	if len(olds) == 0 {
		return 0, nil
	}
	if err := t.requireColumn(ctx, column); err != nil {
		return 0, err
	}
	sort.Strings(olds)

	staged := false
	for _, old := range olds {
		if next, ok := mapping[mapping[old]]; ok && next != mapping[old] {
			staged = true
			break
		}
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				t.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	col := pq.QuoteIdentifier(column)
	update := tx.Rebind(fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", t.quotedName(), col, col))
	exec := func(from, to string) (int64, error) {
		res, execErr := tx.ExecContext(ctx, update, to, from)
		if execErr != nil {
			return 0, fmt.Errorf("failed to update value %q in %s.%s: %w", from, t.FullName(), column, execErr)
		}
		n, rowsErr := res.RowsAffected()
		if rowsErr != nil {
			t.logger.Warn("Couldn't get rows affected", zap.Error(rowsErr))
		}
		return n, nil
	}

	if staged {
		prefix := "__cn_tmp_" + strings.ReplaceAll(uuid.New().String(), "-", "")
		temp := make(map[string]string, len(olds))
		for i, old := range olds {
			temp[old] = fmt.Sprintf("%s_%d", prefix, i)
			n, execErr := exec(old, temp[old])
			if execErr != nil {
				err = execErr
				return 0, err
			}
			affected += n
		}
		for _, old := range olds {
			if _, err = exec(temp[old], mapping[old]); err != nil {
				return 0, err
			}
		}
	} else {
		for _, old := range olds {
			n, execErr := exec(old, mapping[old])
			if execErr != nil {
				err = execErr
				return 0, err
			}
			affected += n
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit value updates: %w", err)
	}

	t.logger.Info("Replaced column values",
		zap.String("column", column),
		zap.Int("distinct_values", len(olds)),
		zap.Int64("rows", affected),
		zap.Bool("staged", staged))
	return affected, nil
}

func (t *SQLTable) requireColumn(ctx context.Context, column string) error {
	cols, err := t.ColumnNames(ctx)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("%w: %q in %s", ErrColumnNotFound, column, t.FullName())
}
