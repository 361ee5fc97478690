package model

// TableMetadata contains the structure information for a database table
type TableMetadata struct {
	Schema  string   // Schema name, may be empty
	Table   string   // Table name
	Columns []Column // Column definitions in table order
}

// Column represents metadata about a database column
type Column struct {
	Name     string // Column name as stored
	Position int    // 1-based ordinal position
}

// NewTableMetadata builds metadata from an ordered list of column names
func NewTableMetadata(schema, table string, names []string) *TableMetadata {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Position: i + 1}
	}
	return &TableMetadata{Schema: schema, Table: table, Columns: cols}
}

// FullName returns the schema-qualified table name
func (tm *TableMetadata) FullName() string {
	if tm.Schema == "" {
		return tm.Table
	}
	return tm.Schema + "." + tm.Table
}

// ColumnNames returns the column names in table order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, len(tm.Columns))
	for i, col := range tm.Columns {
		names[i] = col.Name
	}
	return names
}
