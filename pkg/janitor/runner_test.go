package janitor

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/David-Botos/column-janitor/pkg/cleaner"
	"github.com/David-Botos/column-janitor/pkg/connector"
	"github.com/David-Botos/column-janitor/pkg/model"
)

func openTestDB(t *testing.T, statements ...string) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

func newTestRunner(t *testing.T, db *sqlx.DB, cfg model.CleaningConfig) *Runner {
	t.Helper()
	nc, err := cleaner.NewNameCleaner(cfg)
	require.NoError(t, err)
	r, err := NewRunner(db, nc, zaptest.NewLogger(t))
	require.NoError(t, err)
	return r.WithWorkerCount(2).WithRetryBackoff(0)
}

func columnsOf(t *testing.T, db *sqlx.DB, table string) []string {
	t.Helper()
	cols, err := connector.NewSQLTable(db, "", table, nil).ColumnNames(context.Background())
	require.NoError(t, err)
	return cols
}

func TestNewRunnerValidatesArguments(t *testing.T) {
	nc, err := cleaner.NewNameCleaner(model.DefaultCleaningConfig())
	require.NoError(t, err)

	_, err = NewRunner(nil, nc, nil)
	assert.Error(t, err)

	_, err = NewRunner(openTestDB(t), nil, nil)
	assert.Error(t, err)
}

func TestRunCleansNamesAndRecords(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t,
		`CREATE TABLE customers ("First Name" TEXT, "Last Name" TEXT, id INTEGER)`,
		`CREATE TABLE orders ("Order Date" TEXT, "Total (EUR)" REAL)`,
		`INSERT INTO customers VALUES ('Ana', 'Silva', 1)`,
	)
	rec, err := cleaner.NewRecorder(ctx, db, "", zap.NewNop())
	require.NoError(t, err)

	runner := newTestRunner(t, db, model.DefaultCleaningConfig()).WithRecorder(rec)
	results := runner.Run(ctx, []TableJob{
		NewTableJob("", "customers"),
		NewTableJob("", "orders"),
	})

	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Success, "%s: %v", res.Table, res.Errors)
	}
	assert.Equal(t, "customers", results[0].Table)
	assert.Equal(t, map[string]string{"First Name": "first_name", "Last Name": "last_name"}, results[0].Renames)
	assert.Equal(t, 2, results[1].Operations)

	assert.Equal(t, []string{"first_name", "last_name", "id"}, columnsOf(t, db, "customers"))
	assert.Equal(t, []string{"order_date", "total_eur_"}, columnsOf(t, db, "orders"))

	ops, err := rec.Operations(ctx, "", "customers")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, model.OperationColumnRename, op.CleaningOperation)
		assert.Equal(t, op.ColumnName, op.OriginalValue)
		assert.Equal(t, runner.cleaner.Reason(), op.CleaningReason)
		assert.Equal(t, ops[0].RowIdentifier, op.RowIdentifier, "one run ID per run")
	}

	m := runner.Metrics()
	assert.Equal(t, 2, m.SuccessfulTables)
	assert.Equal(t, 4, m.ColumnsRenamed)
	assert.Equal(t, 4, m.AuditOperations)

	// a second run finds nothing left to do
	again := runner.Run(ctx, []TableJob{NewTableJob("", "customers")})
	assert.True(t, again[0].Success)
	assert.Empty(t, again[0].Renames)
}

func TestRunResolvesCollidingNames(t *testing.T) {
	db := openTestDB(t,
		`CREATE TABLE t ("a b" TEXT, a_b TEXT)`,
		`INSERT INTO t VALUES ('spaced', 'underscored')`,
	)

	results := newTestRunner(t, db, model.DefaultCleaningConfig()).Run(context.Background(), []TableJob{NewTableJob("", "t")})
	require.True(t, results[0].Success, "%v", results[0].Errors)
	assert.Equal(t, []string{"a_b", "a_b_1"}, columnsOf(t, db, "t"))

	var row struct {
		AB  string `db:"a_b"`
		AB1 string `db:"a_b_1"`
	}
	require.NoError(t, db.Get(&row, `SELECT a_b, a_b_1 FROM t`))
	assert.Equal(t, "spaced", row.AB)
	assert.Equal(t, "underscored", row.AB1)
}

func TestRunDryRun(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, `CREATE TABLE customers ("First Name" TEXT, city TEXT)`,
		`INSERT INTO customers VALUES ('Ana', 'São Paulo')`)
	rec := &fakeRecorder{}

	runner := newTestRunner(t, db, model.CleaningConfig{CaseType: model.CaseSnake, StripAccents: true}).
		WithDryRun(true).
		WithRecorder(rec)
	results := runner.Run(ctx, []TableJob{
		NewTableJob("", "customers"),
		NewValueJob("", "customers", "city"),
	})

	require.True(t, results[0].Success)
	assert.True(t, results[0].DryRun)
	assert.Equal(t, map[string]string{"First Name": "first_name"}, results[0].Renames)
	assert.Equal(t, map[string]string{"São Paulo": "sao_paulo"}, results[1].Values)
	assert.Zero(t, results[1].RowsUpdated)

	assert.Equal(t, []string{"First Name", "city"}, columnsOf(t, db, "customers"))
	var city string
	require.NoError(t, db.Get(&city, `SELECT city FROM customers`))
	assert.Equal(t, "São Paulo", city)
	assert.Empty(t, rec.ops)
}

func TestRunCleansValues(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t,
		`CREATE TABLE people (name TEXT, city TEXT)`,
		`INSERT INTO people VALUES ('a', 'New York'), ('b', 'new_york'), ('c', 'São Paulo'), ('d', NULL), ('e', 'New York')`,
	)
	rec := &fakeRecorder{}

	cfg := model.DefaultCleaningConfig()
	cfg.StripAccents = true
	runner := newTestRunner(t, db, cfg).WithRecorder(rec)
	results := runner.Run(ctx, []TableJob{NewValueJob("", "people", "city")})

	res := results[0]
	require.True(t, res.Success, "%v", res.Errors)
	assert.Equal(t, map[string]string{"New York": "new_york", "São Paulo": "sao_paulo"}, res.Values)
	assert.Equal(t, int64(3), res.RowsUpdated)
	assert.Equal(t, 2, res.Operations)

	var cities []string
	require.NoError(t, db.Select(&cities, `SELECT DISTINCT city FROM people WHERE city IS NOT NULL ORDER BY city`))
	assert.Equal(t, []string{"new_york", "sao_paulo"}, cities)

	require.Len(t, rec.ops, 2)
	assert.Equal(t, "city", rec.ops[0].ColumnName)
	assert.Equal(t, "New York", rec.ops[0].OriginalValue)
	assert.Equal(t, model.OperationValueClean, rec.ops[0].CleaningOperation)

	assert.Equal(t, 2, runner.Metrics().ValuesCleaned)
	assert.Equal(t, int64(3), runner.Metrics().RowsUpdated)
}

func TestRunValuesRewriteEachRowOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t,
		`CREATE TABLE tags (id INTEGER, tag TEXT)`,
		`INSERT INTO tags VALUES (1, 'a b c'), (2, 'aBC'), (3, 'aBc'), (4, 'x_y')`,
	)
	cfg := model.DefaultCleaningConfig()
	cfg.CaseType = model.CaseCamel
	runner := newTestRunner(t, db, cfg)

	results := runner.Run(ctx, []TableJob{NewValueJob("", "tags", "tag")})
	require.True(t, results[0].Success, "%v", results[0].Errors)
	assert.Equal(t, int64(3), results[0].RowsUpdated)

	var tags []string
	require.NoError(t, db.Select(&tags, `SELECT tag FROM tags ORDER BY id`))
	for i, original := range []string{"a b c", "aBC", "aBc", "x_y"} {
		assert.Equal(t, runner.cleaner.Clean(original), tags[i], "row %d", i+1)
	}
	assert.Equal(t, []string{"aBc", "aBc", "aBc", "xY"}, tags)
}

func TestRunKeepsGoingAfterFailures(t *testing.T) {
	db := openTestDB(t, `CREATE TABLE good ("Some Column" TEXT)`)

	runner := newTestRunner(t, db, model.DefaultCleaningConfig())
	results := runner.Run(context.Background(), []TableJob{
		NewTableJob("", "missing"),
		NewTableJob("", "good"),
		NewValueJob("", "good", "no_such_column"),
	})

	require.Len(t, results, 3)
	assert.False(t, results[0].Success)
	assert.Equal(t, ErrorCategoryTableLevel, results[0].LastError().Category)
	assert.Zero(t, results[0].RetryCount, "table errors are not retried")

	assert.True(t, results[1].Success)

	assert.False(t, results[2].Success)
	assert.Equal(t, ErrorCategoryValidation, results[2].LastError().Category)
	assert.ErrorIs(t, results[2].LastError().Error, connector.ErrColumnNotFound)

	m := runner.Metrics()
	assert.Equal(t, 1, m.SuccessfulTables)
	assert.Equal(t, 2, m.FailedTables)
	assert.Contains(t, m.Report(), "missing")
	assert.Contains(t, m.FailedJobs, "good.no_such_column")
}

func TestRunRetriesConnectionErrors(t *testing.T) {
	db := openTestDB(t, `CREATE TABLE t ("Flaky Column" TEXT)`)

	runner := newTestRunner(t, db, model.DefaultCleaningConfig())
	flaky := &flakyOpener{db: db, failures: 2}
	runner.WithTableOpener(flaky.open)

	results := runner.Run(context.Background(), []TableJob{NewTableJob("", "t").WithMaxRetries(3)})
	require.True(t, results[0].Success, "%v", results[0].Errors)
	assert.Equal(t, 2, results[0].RetryCount)
	assert.Equal(t, 2, runner.Metrics().Retries)
	assert.Equal(t, []string{"flaky_column"}, columnsOf(t, db, "t"))
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	db := openTestDB(t, `CREATE TABLE t ("Flaky Column" TEXT)`)

	runner := newTestRunner(t, db, model.DefaultCleaningConfig())
	flaky := &flakyOpener{db: db, failures: 10}
	runner.WithTableOpener(flaky.open)

	results := runner.Run(context.Background(), []TableJob{NewTableJob("", "t").WithMaxRetries(1)})
	assert.False(t, results[0].Success)
	assert.Equal(t, 1, results[0].RetryCount)
	assert.Equal(t, ErrorCategoryConnectionLevel, results[0].LastError().Category)
	assert.Equal(t, 2, flaky.calls)
}

func TestRunReportsAuditFailures(t *testing.T) {
	db := openTestDB(t, `CREATE TABLE t ("Some Column" TEXT)`)

	runner := newTestRunner(t, db, model.DefaultCleaningConfig()).
		WithRecorder(&fakeRecorder{err: errors.New("audit table is read-only")})
	results := runner.Run(context.Background(), []TableJob{NewTableJob("", "t")})

	assert.False(t, results[0].Success)
	assert.Equal(t, ErrorCategoryAudit, results[0].LastError().Category)
	assert.Zero(t, results[0].RetryCount)
	// the rename itself was committed
	assert.Equal(t, []string{"some_column"}, columnsOf(t, db, "t"))
}

func TestRunCancelled(t *testing.T) {
	db := openTestDB(t, `CREATE TABLE t ("Some Column" TEXT)`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newTestRunner(t, db, model.DefaultCleaningConfig()).Run(ctx, []TableJob{
		NewTableJob("", "t"),
		NewTableJob("", "t"),
	})
	for _, res := range results {
		assert.False(t, res.Success)
		assert.Equal(t, ErrorCategoryCancelled, res.LastError().Category)
	}
	assert.Equal(t, []string{"Some Column"}, columnsOf(t, db, "t"))
}

func TestRunNoJobs(t *testing.T) {
	runner := newTestRunner(t, openTestDB(t), model.DefaultCleaningConfig())
	assert.Empty(t, runner.Run(context.Background(), nil))
	assert.Zero(t, runner.Metrics().SuccessfulTables)
}

func TestJobsForSchema(t *testing.T) {
	lister := fakeLister{"raw": {"orders", "customers", "tmp_orders", "order_items"}}

	jobs, err := JobsForSchema(context.Background(), lister, "raw", "", "")
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	assert.Equal(t, "customers", jobs[0].Table)
	assert.Equal(t, "raw.customers", jobs[0].FullName())

	jobs, err = JobsForSchema(context.Background(), lister, "raw", "order*", "")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = JobsForSchema(context.Background(), lister, "raw", "*", "tmp_*")
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	_, err = JobsForSchema(context.Background(), lister, "raw", "[", "")
	assert.Error(t, err)

	_, err = JobsForSchema(context.Background(), lister, "missing", "", "")
	assert.Error(t, err)
}

type fakeRecorder struct {
	ops []model.CleaningOperation
	err error
}

func (f *fakeRecorder) Record(_ context.Context, ops []model.CleaningOperation) error {
	if f.err != nil {
		return f.err
	}
	f.ops = append(f.ops, ops...)
	return nil
}

type fakeLister map[string][]string

func (f fakeLister) ListTables(_ context.Context, schema string) ([]string, error) {
	tables, ok := f[schema]
	if !ok {
		return nil, fmt.Errorf("schema %s does not exist", schema)
	}
	return append([]string(nil), tables...), nil
}

// flakyOpener hands out tables whose first failures column reads drop the connection
type flakyOpener struct {
	db       *sqlx.DB
	failures int
	calls    int
}

func (f *flakyOpener) open(schema, table string) Table {
	return &flakyTable{SQLTable: connector.NewSQLTable(f.db, schema, table, nil), opener: f}
}

type flakyTable struct {
	*connector.SQLTable
	opener *flakyOpener
}

func (t *flakyTable) ColumnNames(ctx context.Context) ([]string, error) {
	t.opener.calls++
	if t.opener.calls <= t.opener.failures {
		return nil, fmt.Errorf("failed to read columns: %w", driver.ErrBadConn)
	}
	return t.SQLTable.ColumnNames(ctx)
}
