// Package frame is a minimal column-ordered table of text values. It exists
// so labels and cell values can be cleaned without a database.
package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownColumn is returned when an operation names a missing column
	ErrUnknownColumn = errors.New("unknown column")

	// ErrDuplicateColumn is returned when an operation would leave two
	// columns with the same name
	ErrDuplicateColumn = errors.New("duplicate column")
)

// Frame holds named columns of equal length. Frames are never modified in
// place; every transformation returns a new Frame.
type Frame struct {
	names   []string
	columns [][]string
	index   map[string]int
	rows    int
}

// New builds a frame from column names and their values. columns may be nil
// to build a header-only frame.
func New(names []string, columns [][]string) (*Frame, error) {
	if columns == nil {
		columns = make([][]string, len(names))
	}
	if len(columns) != len(names) {
		return nil, fmt.Errorf("got %d column names for %d columns", len(names), len(columns))
	}

	f := &Frame{
		names:   append([]string(nil), names...),
		columns: make([][]string, len(columns)),
		index:   make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, ok := f.index[name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		f.index[name] = i

		if i == 0 {
			f.rows = len(columns[i])
		} else if len(columns[i]) != f.rows {
			return nil, fmt.Errorf("column %q has %d values, expected %d", name, len(columns[i]), f.rows)
		}
		f.columns[i] = append([]string(nil), columns[i]...)
	}
	return f, nil
}

// Columns returns the column names in order
func (f *Frame) Columns() []string {
	return append([]string(nil), f.names...)
}

// Column returns a copy of the named column's values
func (f *Frame) Column(name string) ([]string, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return append([]string(nil), f.columns[i]...), nil
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return f.rows
}

// Rename returns a frame with columns renamed by an old→new mapping.
// Columns missing from the mapping keep their name.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	for old := range mapping {
		if _, ok := f.index[old]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, old)
		}
	}

	names := make([]string, len(f.names))
	for i, name := range f.names {
		if renamed, ok := mapping[name]; ok {
			names[i] = renamed
		} else {
			names[i] = name
		}
	}
	return New(names, f.columns)
}

// WithColumn returns a frame where the named column holds values. A new
// column is appended when name does not exist yet.
func (f *Frame) WithColumn(name string, values []string) (*Frame, error) {
	if len(f.names) > 0 && len(values) != f.rows {
		return nil, fmt.Errorf("column %q has %d values, expected %d", name, len(values), f.rows)
	}

	names := f.names
	columns := append([][]string(nil), f.columns...)
	if i, ok := f.index[name]; ok {
		columns[i] = values
	} else {
		names = append(append([]string(nil), f.names...), name)
		columns = append(columns, values)
	}
	return New(names, columns)
}
