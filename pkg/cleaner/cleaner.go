package cleaner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/column-janitor/pkg/connector"
	"github.com/David-Botos/column-janitor/pkg/model"
)

// DefaultAuditTable is the tracking table used when none is configured
const DefaultAuditTable = "cleaned_on_ingress"

// Recorder persists cleaning operations into an audit table
type Recorder struct {
	db     *sqlx.DB
	table  string
	logger *zap.Logger
}

// NewRecorder creates a Recorder and ensures its tracking table exists.
// table may be schema-qualified ("audit.cleaned_on_ingress").
func NewRecorder(ctx context.Context, db *sqlx.DB, table string, logger *zap.Logger) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if table == "" {
		table = DefaultAuditTable
	}

	r := &Recorder{
		db:     db,
		table:  table,
		logger: logger,
	}

	if err := r.setupCleaningTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup cleaning table: %w", err)
	}

	return r, nil
}

// qualifiedTable quotes each dot-separated part of the audit table name
func (r *Recorder) qualifiedTable() string {
	return connector.QuoteQualified(r.table)
}

// setupCleaningTable ensures the tracking table exists
func (r *Recorder) setupCleaningTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			operation_id TEXT PRIMARY KEY,
			schema_name TEXT NOT NULL,
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			original_value TEXT,
			new_value TEXT NOT NULL,
			row_identifier TEXT NOT NULL,
			cleaning_operation TEXT NOT NULL,
			cleaning_reason TEXT NOT NULL,
			cleaned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, r.qualifiedTable())
	if _, err := r.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create tracking table: %w", err)
	}

	r.logger.Info("Ensured audit table exists", zap.String("table", r.table))
	return nil
}

// Record batch inserts cleaning operations into the tracking table
func (r *Recorder) Record(ctx context.Context, operations []model.CleaningOperation) (err error) {
	if len(operations) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(fmt.Sprintf(`
		INSERT INTO %s
		(operation_id, schema_name, table_name, column_name, original_value, new_value,
		 row_identifier, cleaning_operation, cleaning_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.qualifiedTable())))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, op := range operations {
		_, err = stmt.ExecContext(ctx,
			uuid.New().String(),
			op.SchemaName,
			op.TableName,
			op.ColumnName,
			toNullableString(op.OriginalValue),
			op.NewValue,
			op.RowIdentifier,
			op.CleaningOperation,
			op.CleaningReason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert cleaning operation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("Recorded cleaning operations", zap.Int("count", len(operations)))
	return nil
}

// Operations loads recorded operations for a table, oldest first
func (r *Recorder) Operations(ctx context.Context, schema, table string) ([]model.CleaningOperation, error) {
	type row struct {
		SchemaName        string  `db:"schema_name"`
		TableName         string  `db:"table_name"`
		ColumnName        string  `db:"column_name"`
		OriginalValue     *string `db:"original_value"`
		NewValue          string  `db:"new_value"`
		RowIdentifier     string  `db:"row_identifier"`
		CleaningOperation string  `db:"cleaning_operation"`
		CleaningReason    string  `db:"cleaning_reason"`
	}

	var rows []row
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT schema_name, table_name, column_name, original_value, new_value,
		       row_identifier, cleaning_operation, cleaning_reason
		FROM %s
		WHERE schema_name = ? AND table_name = ?
		ORDER BY cleaned_at, column_name, new_value
	`, r.qualifiedTable()))
	if err := r.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("failed to load cleaning operations: %w", err)
	}

	ops := make([]model.CleaningOperation, len(rows))
	for i, rw := range rows {
		ops[i] = model.CleaningOperation{
			SchemaName:        rw.SchemaName,
			TableName:         rw.TableName,
			ColumnName:        rw.ColumnName,
			NewValue:          rw.NewValue,
			RowIdentifier:     rw.RowIdentifier,
			CleaningOperation: rw.CleaningOperation,
			CleaningReason:    rw.CleaningReason,
		}
		if rw.OriginalValue != nil {
			ops[i].OriginalValue = *rw.OriginalValue
		}
	}
	return ops, nil
}

// toNullableString safely converts an interface to a nullable string
func toNullableString(v interface{}) *string {
	if v == nil {
		return nil
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		s = fmt.Sprintf("%v", val)
	}
	return &s
}
