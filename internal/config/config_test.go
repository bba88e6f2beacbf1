package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var kinds = []string{"mssql", "postgres", "sqlite"}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_JSONWithDefaults(t *testing.T) {
	path := writeFile(t, "pipeline.json", `{
		"job": "nightly",
		"storage": {"kind": "sqlite", "dsn": "sparkify.db"},
		"source": {"song_dir": "in/songs"}
	}`)

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "nightly", p.Job)
	require.Equal(t, "sqlite", p.Storage.Kind)
	require.Equal(t, "sparkify.db", p.Storage.DSN)
	require.Equal(t, "in/songs", p.Source.SongDir)
	require.Equal(t, "data/log_data", p.Source.LogDir)
	require.Equal(t, ".json", p.Source.Ext)
	require.Equal(t, "tmp", p.Staging.Dir)
	require.Equal(t, "none", p.Metrics.Backend)
}

func TestLoad_YAMLEnvOverridesAndExpandsDSN(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", "storage:\n  kind: postgres\n  dsn: host=db\nstaging:\n  dir: /var/tmp/etl\n")
	t.Setenv("ETL_DSN", "host=127.0.0.1 password=${TEST_PGPASSWORD}")
	t.Setenv("TEST_PGPASSWORD", "secret")
	t.Setenv("ETL_STAGING_DIR", "/scratch")

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "host=127.0.0.1 password=secret", p.Storage.DSN)
	require.Equal(t, "/scratch", p.Staging.Dir)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("ETL_STORAGE_KIND", "mssql")
	t.Setenv("METRICS_BACKEND", "datadog")
	t.Setenv("METRICS_FLUSH_EVERY", "15s")

	p, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "mssql", p.Storage.Kind)
	require.Equal(t, "datadog", p.Metrics.Backend)
	d, err := p.Metrics.FlushInterval()
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, d)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func validPipeline(t *testing.T) Pipeline {
	t.Helper()
	dir := t.TempDir()
	return Pipeline{
		Job:     "songplays",
		Source:  Source{SongDir: dir, LogDir: dir, Ext: ".json"},
		Storage: Storage{Kind: "postgres", DSN: "host=db"},
		Staging: Staging{Dir: "tmp"},
		Metrics: Metrics{Backend: "none", FlushEvery: "60s"},
	}
}

func TestValidatePipeline_Valid(t *testing.T) {
	t.Parallel()
	require.Empty(t, ValidatePipeline(validPipeline(t), kinds))
}

func TestValidatePipeline_Issues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(p *Pipeline)
		path     string
		severity Severity
	}{
		{"unknown storage kind", func(p *Pipeline) { p.Storage.Kind = "oracle" }, "storage.kind", SeverityError},
		{"empty storage kind", func(p *Pipeline) { p.Storage.Kind = " " }, "storage.kind", SeverityError},
		{"empty dsn", func(p *Pipeline) { p.Storage.DSN = "" }, "storage.dsn", SeverityError},
		{"empty staging dir", func(p *Pipeline) { p.Staging.Dir = "" }, "staging.dir", SeverityError},
		{"missing song dir", func(p *Pipeline) { p.Source.SongDir = "/does/not/exist" }, "source.song_dir", SeverityWarning},
		{"empty ext", func(p *Pipeline) { p.Source.Ext = "" }, "source.ext", SeverityWarning},
		{"unknown metrics backend", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, "metrics.backend", SeverityError},
		{"pushgateway without url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, "metrics.pushgateway_url", SeverityError},
		{"bad flush interval", func(p *Pipeline) { p.Metrics.FlushEvery = "soon" }, "metrics.flush_every", SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validPipeline(t)
			tt.mutate(&p)

			issues := ValidatePipeline(p, kinds)
			require.Len(t, issues, 1, "issues = %+v", issues)
			require.Equal(t, tt.path, issues[0].Path)
			require.Equal(t, tt.severity, issues[0].Severity)
			require.Equal(t, tt.severity == SeverityError, HasErrors(issues))
		})
	}
}

func TestValidatePipeline_LogDirIsFile(t *testing.T) {
	t.Parallel()
	p := validPipeline(t)
	p.Source.LogDir = writeFile(t, "events.json", "{}")

	issues := ValidatePipeline(p, kinds)
	require.Len(t, issues, 1)
	require.Equal(t, "source.log_dir", issues[0].Path)
	require.Contains(t, issues[0].Message, "not a directory")
}
