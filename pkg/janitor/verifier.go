package janitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/column-janitor/pkg/model"
)

// ErrVerificationFailed is returned when a table does not look as expected
// after its changes were committed
var ErrVerificationFailed = errors.New("verification failed")

// StructureDiscrepancy describes one column that differs from the expected layout
type StructureDiscrepancy struct {
	Position int
	Expected string
	Actual   string
}

// verifyNames re-reads the column names of table and compares them, in
// order, with the expected layout
func verifyNames(ctx context.Context, table Table, expected *model.TableMetadata, logger *zap.Logger) error {
	actual, err := table.ColumnNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify columns of %s: %w", expected.FullName(), err)
	}

	want := expected.ColumnNames()
	var discrepancies []StructureDiscrepancy
	for i := 0; i < len(want) || i < len(actual); i++ {
		var d StructureDiscrepancy
		if i < len(want) {
			d.Expected = want[i]
		}
		if i < len(actual) {
			d.Actual = actual[i]
		}
		if d.Expected != d.Actual {
			d.Position = i + 1
			discrepancies = append(discrepancies, d)
		}
	}

	if len(discrepancies) == 0 {
		logger.Debug("Table structure verification successful", zap.String("table", expected.FullName()))
		return nil
	}

	parts := make([]string, len(discrepancies))
	for i, d := range discrepancies {
		parts[i] = fmt.Sprintf("#%d expected %q got %q", d.Position, d.Expected, d.Actual)
	}
	logger.Warn("Table structure discrepancies found",
		zap.String("table", expected.FullName()),
		zap.Int("discrepancies", len(discrepancies)))
	return fmt.Errorf("%w: %s: %s", ErrVerificationFailed, expected.FullName(), strings.Join(parts, ", "))
}

// verifyValues checks that every row counted in before now holds its mapped
// value: the per-value row counts after the change must equal the counts
// before with each old value folded into its target
func verifyValues(ctx context.Context, table Table, column string, before map[string]int64, mapping map[string]string, logger *zap.Logger) error {
	after, err := table.ValueCounts(ctx, column)
	if err != nil {
		return fmt.Errorf("failed to verify values of %s.%s: %w", table.FullName(), column, err)
	}

	expected := make(map[string]int64, len(before))
	for v, n := range before {
		if cleaned, ok := mapping[v]; ok {
			v = cleaned
		}
		expected[v] += n
	}

	var mismatched []string
	for v, n := range expected {
		if after[v] != n {
			mismatched = append(mismatched, v)
		}
	}
	for v := range after {
		if _, ok := expected[v]; !ok {
			mismatched = append(mismatched, v)
		}
	}
	if len(mismatched) == 0 {
		return nil
	}
	sort.Strings(mismatched)

	logger.Warn("Column values differ from the expected result",
		zap.String("table", table.FullName()),
		zap.String("column", column),
		zap.Strings("values", mismatched))
	return fmt.Errorf("%w: %d values of %s.%s have unexpected row counts", ErrVerificationFailed, len(mismatched), table.FullName(), column)
}
