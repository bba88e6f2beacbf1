// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Metrics are buffered in memory and submitted on Flush. A background loop
// flushes on a ticker (default once per minute) so long loads produce a time
// series instead of a single point; Close stops the loop and flushes the tail.
//
// Concurrency model:
//   - pipeline code can call IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets buffers under a mutex, then submits out-of-lock
//
// If the process is killed with SIGKILL/OOM, Close won't run.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"songetl/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "etl".
	JobName string

	// RunID, when set, becomes tag "run_id:<id>".
	RunID string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:songetl"}).
	// Each tag must have the form key:value.
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Test seams; production never sets them.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// seriesDef maps a metrics-package name onto a Datadog metric name and the
// labels carried over as tags. Events missing the required label are dropped.
type seriesDef struct {
	name     string
	tags     []string
	required string
}

var counterDefs = map[string]seriesDef{
	metrics.StepTotal:       {name: "etl.step.total", tags: []string{"step", "status"}},
	metrics.RecordsTotal:    {name: "etl.records.total", tags: []string{"kind"}, required: "kind"},
	metrics.TableLoadsTotal: {name: "etl.table.loads.total", tags: []string{"table", "status"}, required: "table"},
	metrics.TableRowsTotal:  {name: "etl.table.rows.total", tags: []string{"table"}, required: "table"},
}

var sampleDefs = map[string]seriesDef{
	metrics.StepDuration: {name: "etl.step.duration_seconds", tags: []string{"step", "status"}},
}

// seriesKey identifies one buffered series: a Datadog metric name plus its
// label-derived tags joined with tagSep.
type seriesKey struct {
	metric string
	tags   string
}

const tagSep = "\x00"

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[seriesKey]float64
	samples  map[seriesKey][]float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and starts
// its flush loop. Credentials and site come from DD_API_KEY / DD_SITE via
// dd.NewDefaultContext.
//
// Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	for _, tag := range opts.Tags {
		if k, v, ok := strings.Cut(tag, ":"); !ok || k == "" || v == "" {
			return nil, wrapInitErr(fmt.Errorf("tag %q is not key:value", tag))
		}
	}

	job := opts.JobName
	if job == "" {
		job = "etl"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 3+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	if opts.RunID != "" {
		baseTags = append(baseTags, "run_id:"+opts.RunID)
	}
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[seriesKey]float64),
		samples:    make(map[seriesKey][]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush.
// Close must be called at most once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// keyFor resolves the buffered series for name, or false when the metric is
// unknown or lacks its required label.
func keyFor(defs map[string]seriesDef, name string, labels metrics.Labels) (seriesKey, bool) {
	def, ok := defs[name]
	if !ok {
		return seriesKey{}, false
	}
	if def.required != "" && labels[def.required] == "" {
		return seriesKey{}, false
	}
	tags := make([]string, len(def.tags))
	for i, l := range def.tags {
		v := labels[l]
		if v == "" {
			v = "unknown"
		}
		tags[i] = l + ":" + v
	}
	return seriesKey{metric: def.name, tags: strings.Join(tags, tagSep)}, true
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	k, ok := keyFor(counterDefs, name, labels)
	if !ok {
		return
	}

	b.mu.Lock()
	b.counters[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	k, ok := keyFor(sampleDefs, name, labels)
	if !ok {
		return
	}

	b.mu.Lock()
	b.samples[k] = append(b.samples[k], value)
	b.mu.Unlock()
}

// snapshotAndReset detaches the current buffers and starts a new window.
func (b *Backend) snapshotAndReset() (map[seriesKey]float64, map[seriesKey][]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	counters, samples := b.counters, b.samples
	b.counters = make(map[seriesKey]float64)
	b.samples = make(map[seriesKey][]float64)
	return counters, samples
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Buffers are reset even if submission fails; delivery is at most once.
// Returns nil without submitting when there is nothing buffered.
func (b *Backend) Flush() error {
	counters, samples := b.snapshotAndReset()
	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}

	series := b.buildSeries(counters, samples, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries turns a snapshot into Datadog series at a fixed timestamp.
// Counters become COUNT points; sample sets become percentile gauges.
// Output is sorted by metric name and tags.
func (b *Backend) buildSeries(counters map[seriesKey]float64, samples map[seriesKey][]float64, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(counters)+6*len(samples))

	for _, k := range sortedKeys(counters) {
		tags := withTags(b.baseTags, splitTags(k.tags)...)
		series = append(series, pointSeries(k.metric, datadogV2.METRICINTAKETYPE_COUNT, counters[k], tags, nowUnix))
	}
	for _, k := range sortedKeys(samples) {
		addPercentiles(&series, withTags(b.baseTags, splitTags(k.tags)...), k.metric, samples[k], nowUnix)
	}
	return series
}

func sortedKeys[V any](m map[seriesKey]V) []seriesKey {
	keys := make([]seriesKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].metric != keys[j].metric {
			return keys[i].metric < keys[j].metric
		}
		return keys[i].tags < keys[j].tags
	})
	return keys
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, tagSep)
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for samples.
// It sorts a copy; the input is not mutated.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	gauge := func(suffix string, v float64) {
		*series = append(*series, pointSeries(metricPrefix+suffix, datadogV2.METRICINTAKETYPE_GAUGE, v, tags, nowUnix))
	}
	gauge(".p50", percentileNearestRank(cp, 0.50))
	gauge(".p90", percentileNearestRank(cp, 0.90))
	gauge(".p95", percentileNearestRank(cp, 0.95))
	gauge(".p99", percentileNearestRank(cp, 0.99))
	gauge(".max", cp[len(cp)-1])
	gauge(".samples", float64(len(cp)))
}

func pointSeries(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:songetl".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
