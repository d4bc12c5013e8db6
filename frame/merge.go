package frame

import (
	"strings"

	"golang.org/x/xerrors"
)

// How selects which unmatched rows a merge keeps.
type How int

const (
	// Left keeps every left row.
	Left How = iota
	// Inner keeps only matched rows.
	Inner
	// Outer keeps every row of both sides.
	Outer
)

func (h How) String() string {
	switch h {
	case Left:
		return "left"
	case Inner:
		return "inner"
	case Outer:
		return "outer"
	}
	return "unknown"
}

// MergeOptions configures Merge.
type MergeOptions struct {
	// On names the key columns. Both sides must have all of them.
	On []string
	How How
	// Suffixes are appended to non-key columns present on both sides, left
	// then right. An empty suffix keeps the name.
	Suffixes [2]string
}

// Merge joins left and right on equal key values. The result has the left
// columns in order followed by the non-key right columns. Matched rows keep
// left order, then right order within a key. Unmatched right rows of an outer
// merge come last. Missing key values match each other.
func Merge(left, right *Table, opts MergeOptions) (*Table, error) {
	if len(opts.On) == 0 {
		return nil, xerrors.Errorf("merge of %s and %s has no key columns", left.Name, right.Name)
	}

	lkeys := make([]int, len(opts.On))
	rkeys := make([]int, len(opts.On))
	isRightKey := make(map[int]bool, len(opts.On))
	isKey := make(map[string]bool, len(opts.On))

	for i, k := range opts.On {
		if lkeys[i] = left.Index(k); lkeys[i] < 0 {
			return nil, xerrors.Errorf("failed to merge on %s.%s: %w", left.Name, k, ErrColumnNotFound)
		}
		if rkeys[i] = right.Index(k); rkeys[i] < 0 {
			return nil, xerrors.Errorf("failed to merge on %s.%s: %w", right.Name, k, ErrColumnNotFound)
		}
		isRightKey[rkeys[i]] = true
		isKey[k] = true
	}

	var rcols []int
	for i := range right.Fields {
		if !isRightKey[i] {
			rcols = append(rcols, i)
		}
	}

	fields, err := mergeFields(left, right, rcols, isKey, opts.Suffixes)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]int, len(right.Rows))
	for i, r := range right.Rows {
		k := keyOf(r, rkeys)
		index[k] = append(index[k], i)
	}

	width := len(left.Fields) + len(rcols)
	matched := make([]bool, len(right.Rows))
	rows := make([]Row, 0, len(left.Rows))

	for _, l := range left.Rows {
		hits := index[keyOf(l, lkeys)]

		if len(hits) == 0 {
			if opts.How == Inner {
				continue
			}
			row := make(Row, width)
			copy(row, l)
			rows = append(rows, row)
			continue
		}

		for _, h := range hits {
			matched[h] = true
			row := make(Row, width)
			copy(row, l)
			for c, j := range rcols {
				row[len(left.Fields)+c] = right.Rows[h][j]
			}
			rows = append(rows, row)
		}
	}

	if opts.How == Outer {
		for i, r := range right.Rows {
			if matched[i] {
				continue
			}
			row := make(Row, width)
			for k, li := range lkeys {
				v, err := Coerce(left.Fields[li].Kind, r[rkeys[k]])
				if err != nil {
					return nil, xerrors.Errorf("key %s of %s does not fit %s: %w", opts.On[k], right.Name, left.Name, err)
				}
				row[li] = v
			}
			for c, j := range rcols {
				row[len(left.Fields)+c] = r[j]
			}
			rows = append(rows, row)
		}
	}

	return New(left.Name, fields, rows), nil
}

func mergeFields(left, right *Table, rcols []int, isKey map[string]bool, suffixes [2]string) ([]Field, error) {
	inLeft := make(map[string]bool, len(left.Fields))
	for _, f := range left.Fields {
		inLeft[f.Name] = true
	}
	inRight := make(map[string]bool, len(rcols))
	for _, j := range rcols {
		inRight[right.Fields[j].Name] = true
	}

	fields := make([]Field, 0, len(left.Fields)+len(rcols))

	for _, f := range left.Fields {
		if !isKey[f.Name] && inRight[f.Name] {
			if suffixes[0] == "" && suffixes[1] == "" {
				return nil, xerrors.Errorf("column %s is on both %s and %s and no suffix is given", f.Name, left.Name, right.Name)
			}
			f.Name += suffixes[0]
		}
		fields = append(fields, f)
	}

	for _, j := range rcols {
		f := right.Fields[j]
		if inLeft[f.Name] {
			f.Name += suffixes[1]
		}
		fields = append(fields, f)
	}

	return fields, nil
}

func keyOf(r Row, idx []int) string {
	var b strings.Builder
	for _, j := range idx {
		appendKey(&b, r[j])
	}
	return b.String()
}
