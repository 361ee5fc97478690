package frame

import (
	"github.com/David-Botos/column-janitor/pkg/cleaner"
	"github.com/David-Botos/column-janitor/pkg/model"
)

// CleanNames returns a copy of f whose column names have been cleaned and
// made unique. An invalid cfg is reported before anything is touched.
func CleanNames(f *Frame, cfg model.CleaningConfig) (*Frame, error) {
	nc, err := cleaner.NewNameCleaner(cfg)
	if err != nil {
		return nil, err
	}
	return New(nc.CleanAll(f.names), f.columns)
}

// CleanColumnValues returns a copy of f where every value of column has been
// cleaned. Values are not made unique.
func CleanColumnValues(f *Frame, column string, cfg model.CleaningConfig) (*Frame, error) {
	nc, err := cleaner.NewNameCleaner(cfg)
	if err != nil {
		return nil, err
	}
	values, err := f.Column(column)
	if err != nil {
		return nil, err
	}
	return f.WithColumn(column, nc.CleanValues(values))
}

// CleanNames is the method form of CleanNames
func (f *Frame) CleanNames(cfg model.CleaningConfig) (*Frame, error) {
	return CleanNames(f, cfg)
}

// CleanColumnValues is the method form of CleanColumnValues
func (f *Frame) CleanColumnValues(column string, cfg model.CleaningConfig) (*Frame, error) {
	return CleanColumnValues(f, column, cfg)
}
