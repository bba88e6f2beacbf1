// Package json turns JSON-lines source files into frames aligned to a fixed
// column list.
package json

import (
	"context"
	"errors"
	"fmt"
	"os"

	"songetl/internal/frame"
)

// LoadFiles parses every record of every file in paths, in order, into one
// frame with the given columns.
//
// Order is file order then line order. An empty path list yields a zero-row
// frame carrying the columns.
//
// Errors:
//   - A file that cannot be opened or read fails the load.
//   - A malformed line fails the load with a *LineError naming file and line.
func LoadFiles(ctx context.Context, paths []string, columns []string) (frame.Frame, error) {
	out := frame.Empty(columns...)
	for _, p := range paths {
		part, err := loadFile(ctx, p, columns)
		if err != nil {
			return frame.Frame{}, err
		}
		if out, err = out.Concat(part); err != nil {
			return frame.Frame{}, fmt.Errorf("read %s: %w", p, err)
		}
	}
	return out, nil
}

// loadFile reads one file into its own frame.
func loadFile(ctx context.Context, path string, columns []string) (frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	part := frame.Empty(columns...)
	err = StreamRows(ctx, f, columns, func(_ int, row []any) error {
		part.Rows = append(part.Rows, row)
		return nil
	})
	var le *LineError
	if errors.As(err, &le) {
		le.Path = path
		return frame.Frame{}, le
	}
	if err != nil {
		return frame.Frame{}, fmt.Errorf("read %s: %w", path, err)
	}
	return part, nil
}
