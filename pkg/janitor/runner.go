package janitor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/column-janitor/pkg/cleaner"
	"github.com/David-Botos/column-janitor/pkg/connector"
	"github.com/David-Botos/column-janitor/pkg/model"
)

// Table is the part of a database table a job reads and rewrites
type Table interface {
	FullName() string
	ColumnNames(ctx context.Context) ([]string, error)
	RenameColumns(ctx context.Context, mapping map[string]string) error
	ValueCounts(ctx context.Context, column string) (map[string]int64, error)
	ReplaceValues(ctx context.Context, column string, mapping map[string]string) (int64, error)
}

// TableOpener binds a schema and table name to a Table
type TableOpener func(schema, table string) Table

// OperationRecorder persists audit rows for applied changes
type OperationRecorder interface {
	Record(ctx context.Context, ops []model.CleaningOperation) error
}

// TableLister lists the tables of a schema
type TableLister interface {
	ListTables(ctx context.Context, schema string) ([]string, error)
}

// Runner cleans many tables concurrently with a pool of workers
type Runner struct {
	cleaner  *cleaner.NameCleaner
	open     TableOpener
	recorder OperationRecorder
	logger   *zap.Logger

	workerCount  int
	dryRun       bool
	retryBackoff time.Duration

	mu      sync.Mutex
	metrics *RunMetrics
}

// NewRunner creates a runner whose jobs operate on tables of db
func NewRunner(db *sqlx.DB, nc *cleaner.NameCleaner, logger *zap.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if nc == nil {
		return nil, errors.New("name cleaner cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		cleaner:      nc,
		logger:       logger.Named("janitor"),
		workerCount:  runtime.NumCPU(),
		retryBackoff: time.Second,
	}
	r.open = func(schema, table string) Table {
		return connector.NewSQLTable(db, schema, table, r.logger)
	}
	return r, nil
}

// WithWorkerCount sets the number of workers. Values below 1 use runtime.NumCPU().
func (r *Runner) WithWorkerCount(count int) *Runner {
	if count < 1 {
		count = runtime.NumCPU()
	}
	r.workerCount = count
	return r
}

// WithDryRun makes jobs compute their changes without applying or recording them
func (r *Runner) WithDryRun(dryRun bool) *Runner {
	r.dryRun = dryRun
	return r
}

// WithRecorder sets where applied changes are audited. nil disables auditing.
func (r *Runner) WithRecorder(rec OperationRecorder) *Runner {
	r.recorder = rec
	return r
}

// WithRetryBackoff sets the pause before a failed job is retried
func (r *Runner) WithRetryBackoff(d time.Duration) *Runner {
	r.retryBackoff = d
	return r
}

// WithTableOpener replaces how jobs bind to tables
func (r *Runner) WithTableOpener(open TableOpener) *Runner {
	r.open = open
	return r
}

// Metrics returns the metrics of the most recent run
func (r *Runner) Metrics() *RunMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

type indexedJob struct {
	index int
	job   TableJob
}

type indexedResult struct {
	index  int
	result JobResult
}

// Run processes jobs and returns one result per job, in input order. A
// failing job never stops the others. Jobs still queued when ctx is
// cancelled are reported as cancelled.
func (r *Runner) Run(ctx context.Context, jobs []TableJob) []JobResult {
	metrics := NewRunMetrics(r.logger)
	r.mu.Lock()
	r.metrics = metrics
	r.mu.Unlock()

	runID := uuid.New().String()
	results := make([]JobResult, len(jobs))
	if len(jobs) == 0 {
		metrics.Complete()
		return results
	}

	workers := r.workerCount
	if workers > len(jobs) {
		workers = len(jobs)
	}

	r.logger.Info("Starting cleaning run",
		zap.String("runID", runID),
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", workers),
		zap.Bool("dryRun", r.dryRun))

	jobCh := make(chan indexedJob, len(jobs))
	resultCh := make(chan indexedResult, len(jobs))
	for i, job := range jobs {
		jobCh <- indexedJob{index: i, job: job}
	}
	close(jobCh)

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w := &worker{
				id:      workerID,
				runner:  r,
				runID:   runID,
				metrics: metrics,
				logger:  r.logger.With(zap.Int("workerID", workerID)),
			}
			for ij := range jobCh {
				resultCh <- indexedResult{index: ij.index, result: w.run(ctx, ij.job)}
			}
		}(id)
	}

	wg.Wait()
	close(resultCh)

	for ir := range resultCh {
		results[ir.index] = ir.result
		metrics.RecordJob(ir.result)
	}
	metrics.Complete()
	return results
}

// JobsForSchema lists the tables of a schema and creates one name job per
// table whose name matches include (when set) and not exclude. Patterns use
// path.Match syntax.
func JobsForSchema(ctx context.Context, lister TableLister, schema, include, exclude string) ([]TableJob, error) {
	tables, err := lister.ListTables(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", schema, err)
	}
	sort.Strings(tables)

	var jobs []TableJob
	for _, table := range tables {
		ok, err := shouldIncludeTable(table, include, exclude)
		if err != nil {
			return nil, err
		}
		if ok {
			jobs = append(jobs, NewTableJob(schema, table))
		}
	}
	return jobs, nil
}

func shouldIncludeTable(table, include, exclude string) (bool, error) {
	if include != "" {
		matched, err := path.Match(include, table)
		if err != nil {
			return false, fmt.Errorf("invalid include pattern %q: %w", include, err)
		}
		if !matched {
			return false, nil
		}
	}
	if exclude != "" {
		matched, err := path.Match(exclude, table)
		if err != nil {
			return false, fmt.Errorf("invalid exclude pattern %q: %w", exclude, err)
		}
		if matched {
			return false, nil
		}
	}
	return true, nil
}
