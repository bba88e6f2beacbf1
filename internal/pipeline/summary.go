package pipeline

import (
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"songetl/internal/loader"
)

// Summary reports the outcome of one run.
type Summary struct {
	RunID     string
	SongFiles int
	LogFiles  int
	// Unmatched counts songplays without a catalog match.
	Unmatched int
	Results   []loader.Result
	Duration  time.Duration
}

// Failed returns the failed table loads in run order.
func (s Summary) Failed() []loader.Result {
	var out []loader.Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// OK reports whether every table load succeeded.
func (s Summary) OK() bool { return len(s.Failed()) == 0 }

// Result returns the load result for table.
func (s Summary) Result(table string) (loader.Result, bool) {
	for _, r := range s.Results {
		if r.Table == table {
			return r, true
		}
	}
	return loader.Result{}, false
}

// Write prints a per-table report with locale-grouped counts.
func (s Summary) Write(w io.Writer) error {
	p := message.NewPrinter(language.English)

	if _, err := p.Fprintf(w, "run %s: %d song files, %d log files\n", s.RunID, s.SongFiles, s.LogFiles); err != nil {
		return err
	}
	for _, r := range s.Results {
		status := "ok"
		if !r.OK() {
			status = "FAILED"
		}
		if _, err := p.Fprintf(w, "  %-10s %-6s %12d rows  %s\n", r.Table, status, r.Rows, r.Duration.Truncate(time.Millisecond)); err != nil {
			return err
		}
		if !r.OK() {
			if _, err := p.Fprintf(w, "    %v\n", r.Err); err != nil {
				return err
			}
		}
	}
	_, err := p.Fprintf(w, "unmatched songplays: %d\n", s.Unmatched)
	return err
}
