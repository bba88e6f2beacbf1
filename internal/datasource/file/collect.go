// Package file discovers local input files for the loaders.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Collect walks root recursively and returns the absolute path of every
// regular file whose extension equals ext (".json"; matched case-sensitively,
// the leading dot is optional).
//
// Edge cases:
//   - An empty ext matches every regular file.
//   - A missing root is not an error; the result is empty.
//   - Output is sorted lexically so repeated runs load in the same order.
//
// Errors:
//   - Returns an error if root exists but cannot be walked, or if it cannot be
//     made absolute.
func Collect(root, ext string) ([]string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}
	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var out []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext == "" || filepath.Ext(path) == ext {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}

	sort.Strings(out)
	return out, nil
}
