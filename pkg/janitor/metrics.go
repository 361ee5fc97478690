package janitor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunMetrics tracks metrics for a cleaning run
type RunMetrics struct {
	mu                sync.Mutex
	logger            *zap.Logger
	StartTime         time.Time
	EndTime           time.Time
	SuccessfulTables  int
	FailedTables      int
	ColumnsRenamed    int
	ValuesCleaned     int
	RowsUpdated       int64
	AuditOperations   int
	Retries           int
	ErrorCounts       map[ErrorCategory]int
	FailedJobs        map[string]string // table (or table.column) -> last error message
	WorkerUtilization map[int]time.Duration
}

// NewRunMetrics creates a new RunMetrics instance
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		logger:            logger,
		StartTime:         time.Now(),
		ErrorCounts:       make(map[ErrorCategory]int),
		FailedJobs:        make(map[string]string),
		WorkerUtilization: make(map[int]time.Duration),
	}
}

// RecordJob records metrics for a finished job
func (m *RunMetrics) RecordJob(result JobResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WorkerUtilization[result.WorkerID] += result.Duration

	if !result.Success {
		m.FailedTables++
		key := result.Schema + "." + result.Table
		if result.Schema == "" {
			key = result.Table
		}
		if result.Column != "" {
			key += "." + result.Column
		}
		if last := result.LastError(); last != nil {
			m.FailedJobs[key] = last.Message
		} else {
			m.FailedJobs[key] = "unknown error"
		}
		return
	}

	m.SuccessfulTables++
	m.ColumnsRenamed += len(result.Renames)
	m.ValuesCleaned += len(result.Values)
	m.RowsUpdated += result.RowsUpdated
	m.AuditOperations += result.Operations
}

// RecordError counts an error by category
func (m *RunMetrics) RecordError(category ErrorCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCounts[category]++
}

// RecordRetry counts a retried job
func (m *RunMetrics) RecordRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retries++
}

// Complete finalizes the metrics
func (m *RunMetrics) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EndTime = time.Now()
	if m.logger != nil {
		m.logger.Info("Cleaning run completed",
			zap.Duration("duration", m.EndTime.Sub(m.StartTime)),
			zap.Int("successfulTables", m.SuccessfulTables),
			zap.Int("failedTables", m.FailedTables),
			zap.Int("columnsRenamed", m.ColumnsRenamed),
			zap.Int("valuesCleaned", m.ValuesCleaned),
			zap.Int64("rowsUpdated", m.RowsUpdated),
			zap.Int("retries", m.Retries))
	}
}

// Duration returns the run duration, or the time elapsed so far
func (m *RunMetrics) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// Report generates a human-readable summary
func (m *RunMetrics) Report() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("=== Cleaning Summary ===\n")
	sb.WriteString(fmt.Sprintf("Tables: %d succeeded, %d failed\n", m.SuccessfulTables, m.FailedTables))
	sb.WriteString(fmt.Sprintf("Columns renamed: %d\n", m.ColumnsRenamed))
	sb.WriteString(fmt.Sprintf("Distinct values cleaned: %d (%d rows)\n", m.ValuesCleaned, m.RowsUpdated))
	sb.WriteString(fmt.Sprintf("Audit operations: %d\n", m.AuditOperations))
	if m.Retries > 0 {
		sb.WriteString(fmt.Sprintf("Retries: %d\n", m.Retries))
	}

	if len(m.FailedJobs) > 0 {
		sb.WriteString("\nFailures:\n")
		keys := make([]string, 0, len(m.FailedJobs))
		for k := range m.FailedJobs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, m.FailedJobs[k]))
		}
	}

	return sb.String()
}

// ToJSON serializes the metrics
func (m *RunMetrics) ToJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	errorCounts := make(map[string]int, len(m.ErrorCounts))
	for category, count := range m.ErrorCounts {
		errorCounts[category.String()] = count
	}

	return json.Marshal(struct {
		StartTime        time.Time         `json:"start_time"`
		EndTime          time.Time         `json:"end_time"`
		SuccessfulTables int               `json:"successful_tables"`
		FailedTables     int               `json:"failed_tables"`
		ColumnsRenamed   int               `json:"columns_renamed"`
		ValuesCleaned    int               `json:"values_cleaned"`
		RowsUpdated      int64             `json:"rows_updated"`
		AuditOperations  int               `json:"audit_operations"`
		Retries          int               `json:"retries"`
		ErrorCounts      map[string]int    `json:"error_counts"`
		FailedJobs       map[string]string `json:"failed_jobs"`
	}{
		StartTime:        m.StartTime,
		EndTime:          m.EndTime,
		SuccessfulTables: m.SuccessfulTables,
		FailedTables:     m.FailedTables,
		ColumnsRenamed:   m.ColumnsRenamed,
		ValuesCleaned:    m.ValuesCleaned,
		RowsUpdated:      m.RowsUpdated,
		AuditOperations:  m.AuditOperations,
		Retries:          m.Retries,
		ErrorCounts:      errorCounts,
		FailedJobs:       m.FailedJobs,
	})
}
