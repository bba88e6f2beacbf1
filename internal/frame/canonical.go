package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// keySeparator sits between key components in the canonical form.
// ASCII Unit Separator never appears in the catalog or event text we load.
const keySeparator = '\x1f'

// CanonicalKey renders the values at idx as one stable string.
//
// Behavior / canonicalization rules:
//   - Components are joined with ASCII Unit Separator (0x1f).
//   - nil is encoded as a single NUL byte so missing differs from "".
//   - Integers and integral floats render identically ("5" for int64(5) and 5.0),
//     so a value read back from an INT column equals the JSON number it came from.
//   - time.Time values are encoded as RFC3339Nano in UTC.
func CanonicalKey(row []any, idx []int) string {
	var b strings.Builder
	b.Grow(len(idx) * 16)
	for i, j := range idx {
		if i > 0 {
			b.WriteByte(keySeparator)
		}
		appendCanonicalValue(&b, row[j])
	}
	return b.String()
}

// hashKey buckets a canonical key. Callers must still compare the full key on
// a bucket hit.
func hashKey(key string) uint64 {
	return xxh3.HashString(key)
}

// appendCanonicalValue appends a stable, canonical representation of v.
// It avoids fmt.Sprint for common types to reduce allocations.
func appendCanonicalValue(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')

	case string:
		b.WriteString(t)
	case []byte:
		b.Write(t)

	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}

	case int:
		b.WriteString(strconv.Itoa(t))
	case int16:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))

	case float32:
		appendCanonicalValue(b, float64(t))
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			b.WriteString(strconv.FormatInt(int64(t), 10))
			return
		}
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))

	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteString(tt.Format(time.RFC3339Nano))

	default:
		b.WriteString(fmt.Sprint(t))
	}
}
