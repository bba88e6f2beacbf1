package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// NullMarker is the literal written for missing values in staging files.
// A text value equal to the marker is indistinguishable from NULL.
const NullMarker = "NULL"

// StagingWriter writes rows in PostgreSQL COPY text format: tab-delimited,
// newline-terminated, no header, backslash escapes for '\\', tab, newline and
// carriage return.
type StagingWriter struct {
	w    *bufio.Writer
	rows int64
}

// NewStagingWriter wraps w.
func NewStagingWriter(w io.Writer) *StagingWriter {
	return &StagingWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

// Write encodes one row. nil values are written as NullMarker.
func (s *StagingWriter) Write(row []any) error {
	for i, v := range row {
		if i > 0 {
			if err := s.w.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := s.w.WriteString(FormatField(v)); err != nil {
			return err
		}
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	s.rows++
	return nil
}

// Flush flushes buffered output and reports the number of rows written.
func (s *StagingWriter) Flush() (int64, error) {
	return s.rows, s.w.Flush()
}

// WriteStagingFile creates (or truncates) path and writes rows to it.
func WriteStagingFile(path string, rows [][]any) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create staging file: %w", err)
	}
	sw := NewStagingWriter(f)
	for _, row := range rows {
		if err := sw.Write(row); err != nil {
			_ = f.Close()
			return 0, fmt.Errorf("write staging file %s: %w", path, err)
		}
	}
	n, err := sw.Flush()
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("flush staging file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close staging file %s: %w", path, err)
	}
	return n, nil
}

// FormatField renders one value in COPY text form.
func FormatField(v any) string {
	switch t := v.(type) {
	case nil:
		return NullMarker
	case string:
		return escapeText(t)
	case []byte:
		return escapeText(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return escapeText(fmt.Sprint(t))
	}
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)

func escapeText(s string) string {
	if !strings.ContainsAny(s, "\\\t\n\r") {
		return s
	}
	return textEscaper.Replace(s)
}

// StagingField is one decoded staging value.
type StagingField struct {
	Value string
	Null  bool
}

// ScanStaging decodes a staging stream, calling fn once per row with exactly
// ncols fields. line is 1-based.
//
// Errors:
//   - A row with a different field count is an error naming its line.
//   - Errors returned by fn are returned unchanged.
func ScanStaging(r io.Reader, ncols int, fn func(line int, fields []StagingField) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	line := 0
	for {
		raw, err := br.ReadString('\n')
		if len(raw) > 0 {
			line++
			raw = strings.TrimSuffix(raw, "\n")
			parts := strings.Split(raw, "\t")
			if len(parts) != ncols {
				return fmt.Errorf("staging line %d: got %d fields, want %d", line, len(parts), ncols)
			}
			fields := make([]StagingField, ncols)
			for i, p := range parts {
				if p == NullMarker {
					fields[i] = StagingField{Null: true}
					continue
				}
				fields[i] = StagingField{Value: unescapeText(p)}
			}
			if err := fn(line, fields); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read staging line %d: %w", line+1, err)
		}
	}
}

func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
