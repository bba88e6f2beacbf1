package json

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LineError reports a record that could not be decoded.
//
// Path is empty when the reader did not come from a file.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("json: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("json: %s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// arrayJoinSeparator flattens array-of-strings values into one scalar.
const arrayJoinSeparator = ","

// StreamRows reads JSON-lines from r and calls emit once per record with a row
// aligned to columns.
//
// Streaming behavior:
//   - Each non-blank line holds one JSON object (a single-object file is one line).
//   - A line holding a JSON array streams each object element one-by-one.
//   - Blank lines are skipped; line numbers still count them.
//
// Values:
//   - Keys absent from the object become nil.
//   - Numbers are normalized: integral -> int64, otherwise float64.
//   - Arrays of strings are joined with "," into one string.
//
// Errors:
//   - The first malformed line stops the stream with a *LineError.
//   - Errors returned by emit are returned unchanged.
func StreamRows(ctx context.Context, r io.Reader, columns []string, emit func(line int, row []any) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	line := 0

	for {
		raw, readErr := br.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			if err := ctx.Err(); err != nil {
				return err
			}
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) > 0 {
				if err := decodeLine(trimmed, func(obj map[string]any) error {
					return emit(line, recordToRow(obj, columns))
				}); err != nil {
					var le *LineError
					if errors.As(err, &le) {
						le.Line = line
						return le
					}
					return err
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("json: read line %d: %w", line+1, readErr)
		}
	}
}

// decodeLine decodes one line holding either an object or an array of objects.
// Decoding failures come back as *LineError with Line unset.
func decodeLine(b []byte, emit func(map[string]any) error) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber() // keeps integral values exact; normalizeValue decides int vs float

	tok, err := dec.Token()
	if err != nil {
		return &LineError{Err: fmt.Errorf("read first token: %w", err)}
	}

	switch tok {
	case json.Delim('{'):
		obj, err := decodeObjectBody(dec)
		if err != nil {
			return &LineError{Err: err}
		}
		if err := expectEOF(dec); err != nil {
			return &LineError{Err: err}
		}
		return emit(obj)

	case json.Delim('['):
		if err := streamArrayOfObjects(dec, emit); err != nil {
			return err
		}
		if end, err := dec.Token(); err != nil {
			return &LineError{Err: fmt.Errorf("read array end: %w", err)}
		} else if end != json.Delim(']') {
			return &LineError{Err: fmt.Errorf("expected array end ']', got %v", end)}
		}
		if err := expectEOF(dec); err != nil {
			return &LineError{Err: err}
		}
		return nil

	default:
		return &LineError{Err: fmt.Errorf("unsupported root token %v (want object or array)", tok)}
	}
}

// decodeObjectBody materializes an object whose '{' has already been consumed.
func decodeObjectBody(dec *json.Decoder) (map[string]any, error) {
	obj := make(map[string]any)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read object key: %w", err)
		}
		k, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("object key not a string (got %T)", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode value of %q: %w", k, err)
		}
		obj[k] = v
	}
	end, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read object end: %w", err)
	}
	if end != json.Delim('}') {
		return nil, fmt.Errorf("expected object end '}', got %v", end)
	}
	return obj, nil
}

// streamArrayOfObjects streams elements of the current array (after '[' has been consumed).
// It expects each element to be an object. nil elements are skipped.
func streamArrayOfObjects(dec *json.Decoder, emit func(map[string]any) error) error {
	for dec.More() {
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return &LineError{Err: fmt.Errorf("decode array element: %w", err)}
		}
		if raw == nil {
			continue
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return &LineError{Err: fmt.Errorf("array element not an object (got %T)", raw)}
		}
		if err := emit(obj); err != nil {
			return err
		}
	}
	return nil
}

func expectEOF(dec *json.Decoder) error {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("unexpected trailing data %v", tok)
}

// recordToRow maps a JSON object into a []any aligned with columns.
func recordToRow(obj map[string]any, columns []string) []any {
	row := make([]any, len(columns))
	for i, col := range columns {
		row[i] = normalizeValue(obj[col])
	}
	return row
}

// normalizeValue resolves json.Number and flattens array-of-strings to a
// joined string. Everything else passes through untouched.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil

	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()

	case []any:
		if len(t) == 0 {
			return ""
		}
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			s, ok := it.(string)
			if !ok {
				return v // mixed types; keep original
			}
			ss = append(ss, s)
		}
		if len(ss) == 0 {
			return ""
		}
		return strings.Join(ss, arrayJoinSeparator)

	default:
		return v
	}
}
