// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the ETL pipeline.
//
// A global, pluggable backend defaults to a no-op implementation, so metrics
// are always safe to call even when no real backend is configured. Concrete
// systems (Datadog, Prometheus Pushgateway) live in subpackages.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal       = "etl_step_total"
	StepDuration    = "etl_step_duration_seconds"
	RecordsTotal    = "etl_records_total"
	TableLoadsTotal = "etl_table_loads_total"
	TableRowsTotal  = "etl_table_rows_total"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Reset restores the no-op backend.
func Reset() {
	backend = nopBackend{}
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return statusFailure
	}
	return statusSuccess
}

// RecordStep is a convenience for the common pattern:
// measure latency + success/failure per ETL step.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds used by the pipeline:
//   - "song_records", "log_records" (raw records parsed)
//   - "next_song" (events kept by the NextSong filter)
//   - "unmatched_songplays" (events the resolver could not match)
//   - "inserted" (rows bulk-loaded across all tables)
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordTableLoad records one bulk load outcome for table.
func RecordTableLoad(job, table string, rows int64, err error) {
	backend.IncCounter(TableLoadsTotal, 1, Labels{
		"job":    job,
		"table":  table,
		"status": status(err),
	})
	if err == nil && rows > 0 {
		backend.IncCounter(TableRowsTotal, float64(rows), Labels{
			"job":   job,
			"table": table,
		})
	}
}
