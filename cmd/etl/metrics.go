package main

import (
	"context"
	"fmt"
	"log/slog"

	"songetl/internal/config"
	"songetl/internal/metrics"
	"songetl/internal/metrics/datadog"
	"songetl/internal/metrics/prompush"
)

// closer is a metrics backend with an explicit shutdown.
type closer interface {
	Close() error
}

// Seams for tests; production uses the real constructors.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metrics.Backend, closer, error) {
		b, err := datadog.NewBackend(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
	newPushgatewayBackend = func(job, url, runID string) (metrics.Backend, error) {
		return prompush.NewBackend(job, url, runID)
	}
	setMetricsBackend = metrics.SetBackend
)

// initMetrics installs the configured metrics backend and returns its
// cleanup. cleanup is never nil and is safe to call once.
//
//   - "", "none": nothing is installed.
//   - "pushgateway": metrics are pushed once by cleanup.
//   - "datadog": buffered, flushed periodically and on cleanup.
func initMetrics(ctx context.Context, p config.Pipeline, runID string, log *slog.Logger) (func(), error) {
	noop := func() {}
	job := p.Job
	if job == "" {
		job = "etl"
	}

	switch p.Metrics.Backend {
	case "", "none":
		log.Debug("metrics disabled", "stage", "metrics")
		return noop, nil

	case "pushgateway":
		b, err := newPushgatewayBackend(job, p.Metrics.PushgatewayURL, runID)
		if err != nil {
			return noop, fmt.Errorf("metrics: %w", err)
		}
		setMetricsBackend(b)
		log.Info("metrics enabled", "stage", "metrics", "backend", "pushgateway", "url", p.Metrics.PushgatewayURL)
		return func() {
			if err := b.Flush(); err != nil {
				log.Warn("metrics push failed", "stage", "metrics", "err", err)
			}
			metrics.Reset()
		}, nil

	case "datadog":
		every, err := p.Metrics.FlushInterval()
		if err != nil {
			return noop, fmt.Errorf("metrics: %w", err)
		}
		tags := datadog.ParseTagsCSV(p.Metrics.Tags)
		b, c, err := newDatadogBackend(ctx, datadog.Options{JobName: job, RunID: runID, Tags: tags, FlushEvery: every})
		if err != nil {
			return noop, fmt.Errorf("metrics: %w", err)
		}
		setMetricsBackend(b)
		log.Info("metrics enabled", "stage", "metrics", "backend", "datadog", "tags", tags)
		return func() {
			if err := c.Close(); err != nil {
				log.Warn("metrics: datadog close error", "stage", "metrics", "err", err)
			}
			metrics.Reset()
		}, nil

	default:
		return noop, fmt.Errorf("metrics: unknown backend %q", p.Metrics.Backend)
	}
}
