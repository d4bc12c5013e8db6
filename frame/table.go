// Package frame provides the in-memory tabular structure that flows between
// pipeline stages, together with the column operations the star-schema plan
// needs: rename, select, merge and a few counters.
package frame

import (
	"github.com/samber/lo"
	"golang.org/x/xerrors"
)

// ErrColumnNotFound is returned when an operation names a column the table
// does not have.
var ErrColumnNotFound = xerrors.New("column not found")

// Kind is the in-memory type of a column.
type Kind int

// Column kinds. Values are stored as string (KindString, KindCategory), int64,
// float64, bool and time.Time respectively. A nil value is a missing value.
const (
	KindString Kind = iota
	KindCategory
	KindInt
	KindFloat
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindCategory:
		return "category"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	}
	return "unknown"
}

// Numeric reports whether values of the kind are numbers.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Textual reports whether values of the kind are strings.
func (k Kind) Textual() bool {
	return k == KindString || k == KindCategory
}

// Field describes one column.
type Field struct {
	Name string
	Kind Kind
}

// Row holds one value per field.
type Row []any

// Table is a named, ordered set of typed columns stored row by row.
type Table struct {
	Name   string
	Fields []Field
	Rows   []Row
}

// New builds a table. Rows are used as given.
func New(name string, fields []Field, rows []Row) *Table {
	if rows == nil {
		rows = []Row{}
	}
	return &Table{Name: name, Fields: fields, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return lo.Map(t.Fields, func(f Field, _ int) string { return f.Name })
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	_, i, ok := lo.FindIndexOf(t.Fields, func(f Field) bool { return f.Name == name })
	if !ok {
		return -1
	}
	return i
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Field returns the named field.
func (t *Table) Field(name string) (Field, error) {
	i := t.Index(name)
	if i < 0 {
		return Field{}, xerrors.Errorf("%s.%s: %w", t.Name, name, ErrColumnNotFound)
	}
	return t.Fields[i], nil
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]any, error) {
	i := t.Index(name)
	if i < 0 {
		return nil, xerrors.Errorf("%s.%s: %w", t.Name, name, ErrColumnNotFound)
	}
	return lo.Map(t.Rows, func(r Row, _ int) any { return r[i] }), nil
}

// Clone returns a deep copy of the table structure. Values themselves are
// immutable so they are shared.
func (t *Table) Clone() *Table {
	fields := make([]Field, len(t.Fields))
	copy(fields, t.Fields)

	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append(Row(nil), r...)
	}

	return &Table{Name: t.Name, Fields: fields, Rows: rows}
}

// Named returns a shallow copy of the table under a different name.
func (t *Table) Named(name string) *Table {
	c := *t
	c.Name = name
	return &c
}
