package janitor

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/column-janitor/pkg/model"
)

// worker executes jobs taken from a run's queue
type worker struct {
	id      int
	runner  *Runner
	runID   string
	metrics *RunMetrics
	logger  *zap.Logger
}

// run processes a job, retrying it while the failure is retryable
func (w *worker) run(ctx context.Context, job TableJob) JobResult {
	for {
		result := w.processJob(ctx, job)
		if result.Success {
			return *result
		}

		last := result.LastError()
		if last == nil || !last.Category.Retryable() || !job.IsRetryable() || ctx.Err() != nil {
			return *result
		}

		job = job.Retry()
		w.metrics.RecordRetry()
		w.logger.Warn("Retrying job",
			zap.String("table", job.FullName()),
			zap.Int("retry", job.RetryCount),
			zap.String("error", last.Message))

		if w.runner.retryBackoff > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(w.runner.retryBackoff * time.Duration(job.RetryCount)):
			}
		}
	}
}

// processJob runs a single attempt of a job
func (w *worker) processJob(ctx context.Context, job TableJob) *JobResult {
	result := NewJobResult(job, w.id)
	result.DryRun = w.runner.dryRun

	if err := ctx.Err(); err != nil {
		w.fail(result, job, err)
		result.Complete(false)
		return result
	}

	table := w.runner.open(job.Schema, job.Table)
	var err error
	if job.IsValueJob() {
		err = w.cleanValues(ctx, job, table, result)
	} else {
		err = w.cleanNames(ctx, job, table, result)
	}
	if err != nil {
		w.fail(result, job, err)
	}
	result.Complete(err == nil)

	if result.Success {
		w.logger.Info("Table cleaned",
			zap.String("table", job.FullName()),
			zap.String("column", job.Column),
			zap.Int("changes", result.Changes()),
			zap.Int64("rowsUpdated", result.RowsUpdated),
			zap.Duration("duration", result.Duration))
	}
	return result
}

func (w *worker) fail(result *JobResult, job TableJob, err error) {
	category := CategorizeError(err)
	record := NewErrorRecord(err, category).
		WithTable(job.FullName()).
		WithColumn(job.Column).
		WithRetry(job.RetryCount)
	result.AddError(record)
	w.metrics.RecordError(category)

	w.logger.Warn("Job failed",
		zap.String("table", job.FullName()),
		zap.String("category", category.String()),
		zap.Error(err))
}

func (w *worker) cleanNames(ctx context.Context, job TableJob, table Table, result *JobResult) error {
	labels, err := table.ColumnNames(ctx)
	if err != nil {
		return err
	}

	mapping := w.runner.cleaner.RenameMapping(labels)
	result.Renames = mapping
	if len(mapping) == 0 || w.runner.dryRun {
		return nil
	}

	if err := table.RenameColumns(ctx, mapping); err != nil {
		return err
	}
	w.record(ctx, job, result, model.OperationColumnRename, mapping, func(old string) string { return old })

	expected := make([]string, len(labels))
	for i, label := range labels {
		expected[i] = label
		if renamed, ok := mapping[label]; ok {
			expected[i] = renamed
		}
	}
	return verifyNames(ctx, table, model.NewTableMetadata(job.Schema, job.Table, expected), w.logger)
}

func (w *worker) cleanValues(ctx context.Context, job TableJob, table Table, result *JobResult) error {
	before, err := table.ValueCounts(ctx, job.Column)
	if err != nil {
		return err
	}

	values := make([]string, 0, len(before))
	for v := range before {
		values = append(values, v)
	}
	sort.Strings(values)

	cleaned := w.runner.cleaner.CleanValues(values)
	mapping := make(map[string]string)
	for i, v := range values {
		if cleaned[i] != v {
			mapping[v] = cleaned[i]
		}
	}
	result.Values = mapping
	if len(mapping) == 0 || w.runner.dryRun {
		return nil
	}

	rows, err := table.ReplaceValues(ctx, job.Column, mapping)
	if err != nil {
		return err
	}
	result.RowsUpdated = rows
	w.record(ctx, job, result, model.OperationValueClean, mapping, func(string) string { return job.Column })
	return verifyValues(ctx, table, job.Column, before, mapping, w.logger)
}

// record writes one audit row per changed name or value. The table change is
// already committed, so a failure here is reported but never retried.
func (w *worker) record(ctx context.Context, job TableJob, result *JobResult, operation string, mapping map[string]string, column func(old string) string) {
	if w.runner.recorder == nil {
		return
	}

	olds := make([]string, 0, len(mapping))
	for old := range mapping {
		olds = append(olds, old)
	}
	sort.Strings(olds)

	reason := w.runner.cleaner.Reason()
	ops := make([]model.CleaningOperation, 0, len(olds))
	for _, old := range olds {
		ops = append(ops, model.CleaningOperation{
			SchemaName:        job.Schema,
			TableName:         job.Table,
			ColumnName:        column(old),
			OriginalValue:     old,
			NewValue:          mapping[old],
			RowIdentifier:     w.runID,
			CleaningOperation: operation,
			CleaningReason:    reason,
		})
	}

	if err := w.runner.recorder.Record(ctx, ops); err != nil {
		result.AddError(NewErrorRecord(err, ErrorCategoryAudit).WithTable(job.FullName()).WithColumn(job.Column))
		w.metrics.RecordError(ErrorCategoryAudit)
		w.logger.Error("Failed to record cleaning operations",
			zap.String("table", job.FullName()),
			zap.Error(err))
		return
	}
	result.Operations = len(ops)
}
