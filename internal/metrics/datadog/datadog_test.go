package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"songetl/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// newQuietBackend builds a backend whose loop never ticks during the test.
func newQuietBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:   "songplays",
		submitter: fs,
		now:       func() time.Time { return time.Unix(1000, 0) },
		newTicker: func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func findSeries(p datadogV2.MetricPayload, metric string, tag string) (datadogV2.MetricSeries, bool) {
	for _, s := range p.Series {
		if s.Metric == metric && contains(s.Tags, tag) {
			return s, true
		}
	}
	return datadogV2.MetricSeries{}, false
}

func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	if got := wrapInitErr(nil); got != nil {
		t.Fatalf("wrapInitErr(nil)=%v, want nil", got)
	}
	in := errors.New("boom")
	got := wrapInitErr(in)
	if !errors.Is(got, in) || !strings.HasPrefix(got.Error(), "datadog metrics init:") {
		t.Fatalf("wrapInitErr(err)=%v", got)
	}
}

func TestNewBackend_RejectsMalformedTag(t *testing.T) {
	_, err := NewBackend(context.Background(), Options{Tags: []string{"service:songetl", "oops"}, submitter: &fakeSubmitter{}})
	if err == nil || !strings.Contains(err.Error(), `"oops"`) {
		t.Fatalf("NewBackend() err=%v, want malformed tag error", err)
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	b, err := NewBackend(context.Background(), Options{
		RunID:     "r-1",
		Tags:      []string{"service:songetl"},
		submitter: &fakeSubmitter{},
		newTicker: func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	for _, tag := range []string{"job:etl", "run_id:r-1", "service:songetl"} {
		if !contains(b.baseTags, tag) {
			t.Fatalf("baseTags missing %s: %v", tag, b.baseTags)
		}
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:etl"}
	got := withTags(base, "table:songs")
	want := []string{"env:test", "job:etl", "table:songs"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

func TestAddPercentiles_DoesNotMutateInput(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, []string{"step:load_songs"}, "etl.step.duration_seconds", in, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}
	last := series[len(series)-1]
	if last.Metric != "etl.step.duration_seconds.samples" || *last.Points[0].Value != 5 {
		t.Fatalf("samples gauge = %s %v", last.Metric, *last.Points[0].Value)
	}
	if *last.Type != datadogV2.METRICINTAKETYPE_GAUGE || *last.Points[0].Timestamp != 999 {
		t.Fatalf("samples gauge type/timestamp = %v/%v", *last.Type, *last.Points[0].Timestamp)
	}
}

func TestFlush_TableMetrics(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuietBackend(t, fs)

	metrics.SetBackend(b)
	t.Cleanup(metrics.Reset)

	metrics.RecordTableLoad("songplays", "songs", 71, nil)
	metrics.RecordTableLoad("songplays", "users", 0, errors.New("duplicate key"))
	metrics.RecordStep("songplays", "load_songs", nil, 250*time.Millisecond)
	metrics.RecordRow("songplays", "next_song", 6820)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}

	rows, ok := findSeries(payload, "etl.table.rows.total", "table:songs")
	if !ok || *rows.Points[0].Value != 71 || *rows.Type != datadogV2.METRICINTAKETYPE_COUNT {
		t.Fatalf("etl.table.rows.total for songs = %+v", rows)
	}
	if _, ok := findSeries(payload, "etl.table.rows.total", "table:users"); ok {
		t.Fatalf("failed load must not report rows")
	}
	failed, ok := findSeries(payload, "etl.table.loads.total", "status:failure")
	if !ok || !contains(failed.Tags, "table:users") {
		t.Fatalf("missing failed load series for users; got %+v", payload.Series)
	}
	if _, ok := findSeries(payload, "etl.step.duration_seconds.p50", "step:load_songs"); !ok {
		t.Fatalf("missing step duration percentile")
	}
	if _, ok := findSeries(payload, "etl.records.total", "kind:next_song"); !ok {
		t.Fatalf("missing record counter")
	}
	for _, s := range payload.Series {
		if !contains(s.Tags, "job:songplays") {
			t.Fatalf("series %s missing job tag: %v", s.Metric, s.Tags)
		}
	}

	// Buffers are reset after flush.
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
}

func TestFlush_SubmitErrorStillResets(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403")}
	b := newQuietBackend(t, fs)

	b.IncCounter(metrics.TableRowsTotal, 3, metrics.Labels{"table": "time"})
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}
	b.mu.Lock()
	n := len(b.counters)
	b.mu.Unlock()
	if n != 0 {
		t.Fatalf("buffers not reset after failed Flush")
	}
}

func TestIncCounterAndObserveHistogram_Ignored(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuietBackend(t, fs)

	b.IncCounter(metrics.TableRowsTotal, 0, metrics.Labels{"table": "songs"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{})
	b.IncCounter(metrics.TableLoadsTotal, 1, metrics.Labels{"status": "success"})
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.StepDuration, -1, metrics.Labels{"step": "load_songs"})
	b.ObserveHistogram("unknown_seconds", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

func TestMissingLabelBecomesUnknown(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuietBackend(t, fs)

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "extract_songs"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	payload, _ := fs.last()
	if _, ok := findSeries(payload, "etl.step.total", "status:unknown"); !ok {
		t.Fatalf("expected status:unknown tag; got %+v", payload.Series)
	}
}

func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		JobName:    "songplays",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.TableLoadsTotal, 1, metrics.Labels{"table": "songs", "status": "success"})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter(metrics.TableLoadsTotal, 1, metrics.Labels{"table": "artists", "status": "success"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newQuietBackend(t, fs)

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter(metrics.TableRowsTotal, 1, metrics.Labels{"table": "time"})
				b.ObserveHistogram(metrics.StepDuration, 0.01, metrics.Labels{"step": "load_time", "status": "success"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	payload, _ := fs.last()
	s, ok := findSeries(payload, "etl.table.rows.total", "table:time")
	if !ok || *s.Points[0].Value != float64(workers*iters) {
		t.Fatalf("rows total = %+v, want %d", s, workers*iters)
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,service:songetl,  ,team:data ", want: []string{"env:prod", "service:songetl", "team:data"}},
		{name: "single_tag", in: "service:songetl", want: []string{"service:songetl"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
