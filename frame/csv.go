package frame

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/xerrors"
)

// FromRecords builds a table from a header and text records, inferring the
// kind of every column.
func FromRecords(name string, header []string, records [][]string) (*Table, error) {
	fields := make([]Field, len(header))
	rows := make([]Row, len(records))

	for i := range rows {
		if len(records[i]) != len(header) {
			return nil, xerrors.Errorf("%s: record %d has %d fields, header has %d", name, i, len(records[i]), len(header))
		}
		rows[i] = make(Row, len(header))
	}

	column := make([]string, len(records))
	for c, h := range header {
		for i, rec := range records {
			column[i] = rec[c]
		}

		k := InferKind(column)
		fields[c] = Field{Name: h, Kind: k}

		for i, s := range column {
			v, err := ParseValue(k, s)
			if err != nil {
				return nil, xerrors.Errorf("%s.%s row %d: %w", name, h, i, err)
			}
			rows[i][c] = v
		}
	}

	return New(name, fields, rows), nil
}

// ReadCSV reads a staging file: header row of column names, comma delimited,
// no index column. A leading byte order mark is dropped.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	r = transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, xerrors.Errorf("failed to read csv %s: %w", name, err)
	}

	if len(records) == 0 {
		return New(name, nil, nil), nil
	}

	return FromRecords(name, records[0], records[1:])
}

// WriteCSV writes the table with a header row. Missing values are empty.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns()); err != nil {
		return xerrors.Errorf("failed to write header of %s: %w", t.Name, err)
	}

	record := make([]string, len(t.Fields))
	for i, r := range t.Rows {
		for c, v := range r {
			record[c] = FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return xerrors.Errorf("failed to write row %d of %s: %w", i, t.Name, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return xerrors.Errorf("failed to flush %s: %w", t.Name, err)
	}

	return nil
}
