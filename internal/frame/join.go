package frame

import "fmt"

// JoinKind selects which left rows survive a Merge.
type JoinKind int

const (
	// Inner keeps only left rows with at least one match.
	Inner JoinKind = iota
	// Left keeps every left row; unmatched rows get nil for right columns.
	Left
)

func (k JoinKind) String() string {
	switch k {
	case Inner:
		return "inner"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("JoinKind(%d)", int(k))
	}
}

// Merge joins left and right on equal key tuples.
//
// Output columns are the left columns followed by the right columns. A right
// key column whose name equals the paired left key column is folded into the
// left one. Any other shared column name is an error.
//
// Ordering:
//   - Left rows keep their order.
//   - A left row matching several right rows yields one output row per match,
//     consecutive, in right-row order.
//
// Edge cases:
//   - nil never matches, not even another nil (SQL join semantics).
//   - Values compare by canonical form, so int64(5) matches float64(5).
func Merge(left, right Frame, leftOn, rightOn []string, kind JoinKind) (Frame, error) {
	if len(leftOn) == 0 || len(leftOn) != len(rightOn) {
		return Frame{}, fmt.Errorf("frame: merge needs equal non-empty key lists (left=%v right=%v)", leftOn, rightOn)
	}
	lidx, err := left.indices(leftOn)
	if err != nil {
		return Frame{}, fmt.Errorf("frame: merge left: %w", err)
	}
	ridx, err := right.indices(rightOn)
	if err != nil {
		return Frame{}, fmt.Errorf("frame: merge right: %w", err)
	}

	folded := make(map[int]bool, len(rightOn))
	for i, rc := range rightOn {
		if rc == leftOn[i] {
			folded[ridx[i]] = true
		}
	}

	cols := append([]string(nil), left.Columns...)
	keepRight := make([]int, 0, len(right.Columns))
	for j, c := range right.Columns {
		if folded[j] {
			continue
		}
		if left.Index(c) >= 0 {
			return Frame{}, fmt.Errorf("frame: merge column %q present on both sides", c)
		}
		cols = append(cols, c)
		keepRight = append(keepRight, j)
	}

	type entry struct {
		key string
		row int
	}
	buckets := make(map[uint64][]entry, len(right.Rows))
	for i, row := range right.Rows {
		if hasNil(row, ridx) {
			continue
		}
		key := CanonicalKey(row, ridx)
		h := hashKey(key)
		buckets[h] = append(buckets[h], entry{key: key, row: i})
	}

	rows := make([][]any, 0, len(left.Rows))
	for _, lrow := range left.Rows {
		matched := false
		if !hasNil(lrow, lidx) {
			key := CanonicalKey(lrow, lidx)
			for _, e := range buckets[hashKey(key)] {
				if e.key != key {
					continue
				}
				matched = true
				rows = append(rows, joinRow(lrow, right.Rows[e.row], keepRight))
			}
		}
		if !matched && kind == Left {
			rows = append(rows, joinRow(lrow, nil, keepRight))
		}
	}
	return Frame{Columns: cols, Rows: rows}, nil
}

func joinRow(l, r []any, keepRight []int) []any {
	out := make([]any, len(l), len(l)+len(keepRight))
	copy(out, l)
	for _, j := range keepRight {
		if r == nil {
			out = append(out, nil)
		} else {
			out = append(out, r[j])
		}
	}
	return out
}

func hasNil(row []any, idx []int) bool {
	for _, j := range idx {
		if row[j] == nil {
			return true
		}
	}
	return false
}
