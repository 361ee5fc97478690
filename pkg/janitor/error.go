package janitor

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/David-Botos/column-janitor/pkg/connector"
	"github.com/David-Botos/column-janitor/pkg/model"
)

// ErrorCategory defines categories of errors during a cleaning run
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	// The table does not allow the change (missing column, name collision, bad config)
	ErrorCategoryValidation
	// The statement failed for this table only (missing table, permissions, SQL error)
	ErrorCategoryTableLevel
	// Writing the audit trail failed after the table was changed
	ErrorCategoryAudit
	// The connection dropped or timed out; the job may be retried
	ErrorCategoryConnectionLevel
	// The run was cancelled before or while the job ran
	ErrorCategoryCancelled
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryValidation:
		return "Validation"
	case ErrorCategoryTableLevel:
		return "TableLevel"
	case ErrorCategoryAudit:
		return "Audit"
	case ErrorCategoryConnectionLevel:
		return "ConnectionLevel"
	case ErrorCategoryCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// Retryable reports whether a job failing with this category may be run again
func (ec ErrorCategory) Retryable() bool {
	return ec == ErrorCategoryConnectionLevel
}

// ErrorRecord represents a single error during a run
type ErrorRecord struct {
	Category   ErrorCategory
	TableName  string
	ColumnName string
	Error      error
	Message    string // Derived from Error but stored for serialization
	Timestamp  time.Time
	RetryCount int
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:  category,
		Error:     err,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Message = err.Error()
	}
	return record
}

// WithTable adds table information to the error record
func (r ErrorRecord) WithTable(fullName string) ErrorRecord {
	r.TableName = fullName
	return r
}

// WithColumn adds column information to the error record
func (r ErrorRecord) WithColumn(columnName string) ErrorRecord {
	r.ColumnName = columnName
	return r
}

// WithRetry sets retry information
func (r ErrorRecord) WithRetry(retryCount int) ErrorRecord {
	r.RetryCount = retryCount
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.TableName != "" {
		sb.WriteString(fmt.Sprintf("Table: %s ", r.TableName))
	}
	if r.ColumnName != "" {
		sb.WriteString(fmt.Sprintf("Column: %s ", r.ColumnName))
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	if r.RetryCount > 0 {
		sb.WriteString(fmt.Sprintf(" (Retry: %d)", r.RetryCount))
	}

	return sb.String()
}

// CategorizeError determines the category of an error
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ErrorCategoryCancelled
	case errors.Is(err, connector.ErrColumnNotFound),
		errors.Is(err, connector.ErrColumnExists),
		errors.Is(err, model.ErrInvalidConfig):
		return ErrorCategoryValidation
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn):
		return ErrorCategoryConnectionLevel
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorCategoryConnectionLevel
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "database is locked"):
		return ErrorCategoryConnectionLevel
	default:
		return ErrorCategoryTableLevel
	}
}
