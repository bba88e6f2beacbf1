// Package loader bulk-loads projected frames into their tables through a
// per-table staging file.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"songetl/internal/frame"
	"songetl/internal/logging"
	"songetl/internal/metrics"
	"songetl/internal/storage"
)

// Copier is the part of storage.Repository the loader needs.
type Copier interface {
	CopyFromFile(ctx context.Context, table storage.TableSpec, columns []string, path string) (int64, error)
}

// Result is the outcome of loading one table.
type Result struct {
	Table    string
	Rows     int64
	Err      error
	Duration time.Duration
}

// OK reports whether the load succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Loader stages frames under StagingDir and hands them to Repo.
type Loader struct {
	Repo       Copier
	StagingDir string
	Logger     *slog.Logger
	// Job labels metrics; empty means "etl".
	Job string
}

// StagingPath is the staging file for table under dir.
func StagingPath(dir, table string) string {
	return filepath.Join(dir, table+".csv")
}

// Load writes f to the table's staging file and bulk-copies it into the
// table. Failures are reported in Result.Err, never returned or panicked.
// The staging file is removed whatever the outcome.
//
// f's columns must be the table's columns in DDL order; the copy names them
// explicitly.
func (l *Loader) Load(ctx context.Context, table storage.TableSpec, f frame.Frame) Result {
	start := time.Now()
	log := logging.OrDiscard(l.Logger).With("stage", "load", "table", table.Name)

	rows, err := l.load(ctx, table, f)
	res := Result{Table: table.Name, Rows: rows, Err: err, Duration: time.Since(start)}

	job := l.Job
	if job == "" {
		job = "etl"
	}
	metrics.RecordStep(job, "load_"+table.Name, err, res.Duration)
	metrics.RecordTableLoad(job, table.Name, rows, err)
	if err != nil {
		log.Error("load failed", "err", err)
		return res
	}
	metrics.RecordRow(job, "inserted", rows)
	log.Info("loaded", "rows", rows, "took", res.Duration.Truncate(time.Millisecond))
	return res
}

func (l *Loader) load(ctx context.Context, table storage.TableSpec, f frame.Frame) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkColumns(table, f.Columns); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(l.StagingDir, 0o755); err != nil {
		return 0, fmt.Errorf("staging dir: %w", err)
	}

	path := StagingPath(l.StagingDir, table.Name)
	defer os.Remove(path)

	if _, err := storage.WriteStagingFile(path, f.FillNull(storage.NullMarker).Rows); err != nil {
		return 0, fmt.Errorf("write staging %s: %w", path, err)
	}
	n, err := l.Repo.CopyFromFile(ctx, table, f.Columns, path)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// checkColumns requires cols to be the table's columns in DDL order.
func checkColumns(table storage.TableSpec, cols []string) error {
	if len(cols) != len(table.Columns) {
		return fmt.Errorf("load %s: frame has %d columns, table has %d", table.Name, len(cols), len(table.Columns))
	}
	for i, c := range table.Columns {
		if cols[i] != c.Name {
			return fmt.Errorf("load %s: frame column %d is %q, table expects %q", table.Name, i, cols[i], c.Name)
		}
	}
	return nil
}
