// Package frame holds the in-memory tabular shape that flows between the
// record loader, the projectors and the bulk loader.
//
// A Frame is a list of named columns plus rows aligned to them. Operations
// return new frames and never mutate row slices they did not allocate.
package frame

import (
	"fmt"
)

// Frame is an ordered set of rows sharing one column list.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// New builds a frame. Every row must have len(columns) values.
func New(columns []string, rows [][]any) Frame {
	return Frame{Columns: columns, Rows: rows}
}

// Empty returns a zero-row frame with the given columns.
func Empty(columns ...string) Frame {
	return Frame{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// Index returns the position of col or -1.
func (f Frame) Index(col string) int {
	for i, c := range f.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Column returns a copy of the values of col in row order.
func (f Frame) Column(col string) ([]any, error) {
	j := f.Index(col)
	if j < 0 {
		return nil, fmt.Errorf("frame: unknown column %q", col)
	}
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[j]
	}
	return out, nil
}

func (f Frame) indices(cols []string) ([]int, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j := f.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("frame: unknown column %q (have %v)", c, f.Columns)
		}
		idx[i] = j
	}
	return idx, nil
}

// Select projects the frame onto cols, in that order.
func (f Frame) Select(cols ...string) (Frame, error) {
	idx, err := f.indices(cols)
	if err != nil {
		return Frame{}, err
	}
	rows := make([][]any, len(f.Rows))
	for i, row := range f.Rows {
		out := make([]any, len(idx))
		for k, j := range idx {
			out[k] = row[j]
		}
		rows[i] = out
	}
	return Frame{Columns: append([]string(nil), cols...), Rows: rows}, nil
}

// Rename returns a frame whose columns are renamed through m. Columns absent
// from m keep their name. Rows are shared.
func (f Frame) Rename(m map[string]string) Frame {
	cols := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		if n, ok := m[c]; ok {
			cols[i] = n
		} else {
			cols[i] = c
		}
	}
	return Frame{Columns: cols, Rows: f.Rows}
}

// Filter keeps the rows for which keep returns true, in order. Rows are shared.
func (f Frame) Filter(keep func(row []any) bool) Frame {
	rows := make([][]any, 0, len(f.Rows))
	for _, row := range f.Rows {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	return Frame{Columns: f.Columns, Rows: rows}
}

// MapColumn returns a copy of the frame with fn applied to every value of col.
func (f Frame) MapColumn(col string, fn func(v any) any) (Frame, error) {
	j := f.Index(col)
	if j < 0 {
		return Frame{}, fmt.Errorf("frame: unknown column %q", col)
	}
	rows := make([][]any, len(f.Rows))
	for i, row := range f.Rows {
		out := append([]any(nil), row...)
		out[j] = fn(out[j])
		rows[i] = out
	}
	return Frame{Columns: f.Columns, Rows: rows}, nil
}

// DropDuplicates removes rows whose values on subset equal an earlier row.
// The first occurrence survives and order is preserved. An empty subset
// compares whole rows. Two nils compare equal.
func (f Frame) DropDuplicates(subset ...string) (Frame, error) {
	if len(subset) == 0 {
		subset = f.Columns
	}
	idx, err := f.indices(subset)
	if err != nil {
		return Frame{}, err
	}

	seen := make(map[uint64][]string, len(f.Rows))
	rows := make([][]any, 0, len(f.Rows))
	for _, row := range f.Rows {
		key := CanonicalKey(row, idx)
		h := hashKey(key)
		dup := false
		for _, k := range seen[h] {
			if k == key {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], key)
		rows = append(rows, row)
	}
	return Frame{Columns: f.Columns, Rows: rows}, nil
}

// Concat appends the rows of other. Column lists must match exactly.
func (f Frame) Concat(other Frame) (Frame, error) {
	if len(f.Columns) != len(other.Columns) {
		return Frame{}, fmt.Errorf("frame: concat column mismatch %v vs %v", f.Columns, other.Columns)
	}
	for i := range f.Columns {
		if f.Columns[i] != other.Columns[i] {
			return Frame{}, fmt.Errorf("frame: concat column mismatch %v vs %v", f.Columns, other.Columns)
		}
	}
	rows := make([][]any, 0, len(f.Rows)+len(other.Rows))
	rows = append(rows, f.Rows...)
	rows = append(rows, other.Rows...)
	return Frame{Columns: f.Columns, Rows: rows}, nil
}

// FillNull returns a copy where every nil is replaced by v.
func (f Frame) FillNull(v any) Frame {
	rows := make([][]any, len(f.Rows))
	for i, row := range f.Rows {
		out := make([]any, len(row))
		for j, x := range row {
			if x == nil {
				out[j] = v
			} else {
				out[j] = x
			}
		}
		rows[i] = out
	}
	return Frame{Columns: f.Columns, Rows: rows}
}
