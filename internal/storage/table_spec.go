// TableSpec lives in storage so that the schema package, the loader and every
// backend can share it without import cycles.

package storage

// Logical column types. Each backend maps them onto its own DDL types.
const (
	TypeText   = "varchar"
	TypeInt    = "int"
	TypeBigInt = "bigint"
	TypeFloat  = "float"
)

// TableSpec describes one persisted table.
type TableSpec struct {
	Name string `json:"name"`

	// PrimaryKey lists the key columns in order. Empty means no primary key.
	PrimaryKey []string `json:"primary_key,omitempty"`

	// Columns are in DDL order; bulk loads write them in this order.
	Columns []ColumnSpec `json:"columns"`
}

// ColumnSpec is a single column definition.
type ColumnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`

	// Nullable semantics:
	//   - nil   => NOT NULL
	//   - true  => NULL allowed
	//   - false => NOT NULL
	Nullable *bool `json:"nullable,omitempty"`
}

// ColumnNames returns the column names in DDL order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (t TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// InPrimaryKey reports whether name is one of the key columns.
func (t TableSpec) InPrimaryKey(name string) bool {
	for _, k := range t.PrimaryKey {
		if k == name {
			return true
		}
	}
	return false
}

// IsNullable resolves the Nullable pointer.
func (c ColumnSpec) IsNullable() bool {
	return c.Nullable != nil && *c.Nullable
}
