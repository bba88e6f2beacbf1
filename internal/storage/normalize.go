package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeValue converts a scanned database value to the shapes the JSON
// loader produces (string, int64, float64, bool or nil).
//
// Backends must not assume a particular driver type for reads; this helper
// keeps join keys comparable across backends.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float32:
		// Round-trip through the shortest decimal so 5.5 stays 5.5.
		f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(t), 'g', -1, 32), 64)
		return f
	case float64:
		return t
	case bool:
		return t
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// ParseTyped converts one staging-file field into a value for a column of the
// given logical type. s must already be unescaped and must not be the NULL
// marker.
func ParseTyped(s, typ string) (any, error) {
	switch typ {
	case TypeInt, TypeBigInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", typ, s, err)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", typ, s, err)
		}
		return f, nil
	default:
		return s, nil
	}
}
