package janitor

import (
	"time"

	"github.com/google/uuid"
)

// TableJob cleans one table. A job with a Column cleans that column's values;
// otherwise it cleans the table's column names.
type TableJob struct {
	ID         string    // Unique job identifier
	Schema     string    // Schema name, may be empty
	Table      string    // Table name
	Column     string    // Column whose values are cleaned (value jobs only)
	CreatedAt  time.Time // Job creation timestamp
	RetryCount int       // Number of retries attempted
	MaxRetries int       // Maximum allowed retries
}

// NewTableJob creates a job that cleans the column names of a table
func NewTableJob(schema, table string) TableJob {
	return TableJob{
		ID:         uuid.New().String(),
		Schema:     schema,
		Table:      table,
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
}

// NewValueJob creates a job that cleans the values of one column
func NewValueJob(schema, table, column string) TableJob {
	j := NewTableJob(schema, table)
	j.Column = column
	return j
}

// WithMaxRetries sets the maximum retry count and returns the modified job
func (j TableJob) WithMaxRetries(maxRetries int) TableJob {
	j.MaxRetries = maxRetries
	return j
}

// IsValueJob reports whether the job cleans values rather than names
func (j TableJob) IsValueJob() bool {
	return j.Column != ""
}

// IsRetryable checks if the job can be retried
func (j TableJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry increments the retry count and returns the modified job
func (j TableJob) Retry() TableJob {
	j.RetryCount++
	return j
}

// FullName returns the schema-qualified table name
func (j TableJob) FullName() string {
	if j.Schema == "" {
		return j.Table
	}
	return j.Schema + "." + j.Table
}

// JobResult represents the outcome of a table job
type JobResult struct {
	JobID   string
	Schema  string
	Table   string
	Column  string
	Success bool
	DryRun  bool

	// Renames holds old→new for name jobs; Values holds old→new distinct
	// values for value jobs. Both are filled in dry runs too.
	Renames     map[string]string
	Values      map[string]string
	RowsUpdated int64
	Operations  int // audit rows written

	Errors     []ErrorRecord
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	RetryCount int
	WorkerID   int
}

// NewJobResult initializes a result for a job
func NewJobResult(job TableJob, workerID int) *JobResult {
	return &JobResult{
		JobID:      job.ID,
		Schema:     job.Schema,
		Table:      job.Table,
		Column:     job.Column,
		StartTime:  time.Now(),
		RetryCount: job.RetryCount,
		WorkerID:   workerID,
		Errors:     make([]ErrorRecord, 0),
	}
}

// Complete marks the job as complete and calculates duration
func (r *JobResult) Complete(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success && len(r.Errors) == 0
}

// AddError adds an error to the result
func (r *JobResult) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// HasErrors checks if any errors occurred
func (r *JobResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// LastError returns the most recent error, or nil
func (r *JobResult) LastError() *ErrorRecord {
	if len(r.Errors) == 0 {
		return nil
	}
	return &r.Errors[len(r.Errors)-1]
}

// Changes returns how many names or distinct values the job changed
func (r *JobResult) Changes() int {
	return len(r.Renames) + len(r.Values)
}
