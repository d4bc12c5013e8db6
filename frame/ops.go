package frame

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/xerrors"
)

// Rename returns a table whose columns are renamed by mapping. Every key of
// mapping must be an existing column. Rows are shared with t.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	fields := make([]Field, len(t.Fields))
	copy(fields, t.Fields)

	for from, to := range mapping {
		i := t.Index(from)
		if i < 0 {
			return nil, xerrors.Errorf("failed to rename %s.%s: %w", t.Name, from, ErrColumnNotFound)
		}
		fields[i].Name = to
	}

	names := lo.Map(fields, func(f Field, _ int) string { return f.Name })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return nil, xerrors.Errorf("rename of %s produces duplicate columns %v", t.Name, dup)
	}

	return &Table{Name: t.Name, Fields: fields, Rows: t.Rows}, nil
}

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	fields := make([]Field, len(columns))

	for i, c := range columns {
		j := t.Index(c)
		if j < 0 {
			return nil, xerrors.Errorf("failed to select %s.%s: %w", t.Name, c, ErrColumnNotFound)
		}
		idx[i] = j
		fields[i] = t.Fields[j]
	}

	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		row := make(Row, len(idx))
		for c, j := range idx {
			row[c] = r[j]
		}
		rows[i] = row
	}

	return New(t.Name, fields, rows), nil
}

// MapColumn returns a table with fn applied to every value of the named
// column.
func (t *Table) MapColumn(column string, fn func(any) any) (*Table, error) {
	i := t.Index(column)
	if i < 0 {
		return nil, xerrors.Errorf("failed to map %s.%s: %w", t.Name, column, ErrColumnNotFound)
	}

	c := t.Clone()
	for _, r := range c.Rows {
		r[i] = fn(r[i])
	}

	return c, nil
}

// WithConstant returns a table with an int column holding v on every row.
// An existing column of the same name is replaced.
func (t *Table) WithConstant(column string, v int64) *Table {
	c := t.Clone()

	if i := c.Index(column); i >= 0 {
		c.Fields[i].Kind = KindInt
		for _, r := range c.Rows {
			r[i] = v
		}
		return c
	}

	c.Fields = append(c.Fields, Field{Name: column, Kind: KindInt})
	for i, r := range c.Rows {
		c.Rows[i] = append(r, v)
	}

	return c
}

// DistinctCount counts distinct non-missing values of the named column.
func (t *Table) DistinctCount(column string) (int, error) {
	values, err := t.Column(column)
	if err != nil {
		return 0, err
	}

	present := lo.Filter(values, func(v any, _ int) bool { return v != nil })
	return len(lo.UniqBy(present, valueKey)), nil
}

// DuplicateCount counts rows that are exact copies of an earlier row.
func (t *Table) DuplicateCount() int {
	return len(t.Rows) - len(lo.UniqBy(t.Rows, rowKey))
}

// DropDuplicates returns a table without exact duplicate rows, keeping the
// first occurrence, and how many rows were dropped.
func (t *Table) DropDuplicates() (*Table, int) {
	rows := lo.UniqBy(t.Rows, rowKey)
	dropped := len(t.Rows) - len(rows)

	fields := make([]Field, len(t.Fields))
	copy(fields, t.Fields)

	return New(t.Name, fields, rows), dropped
}

// Keys length-prefix every formatted value, so no text can make two
// different rows encode alike. A missing value encodes as nullKey, which
// cannot start a length prefix.
const nullKey = "~"

func appendKey(b *strings.Builder, v any) {
	if v == nil {
		b.WriteString(nullKey)
		return
	}
	s := FormatValue(v)
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func valueKey(v any) string {
	var b strings.Builder
	appendKey(&b, v)
	return b.String()
}

func rowKey(r Row) string {
	var b strings.Builder
	for _, v := range r {
		appendKey(&b, v)
	}
	return b.String()
}
