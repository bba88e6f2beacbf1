// Package config defines the pipeline configuration file and its validation.
//
// A pipeline file is JSON or YAML (picked by extension). Every field can be
// overridden from the environment; environment values win over the file.
package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Pipeline is the root configuration of one ETL run.
type Pipeline struct {
	// Job names the run in logs and metric tags.
	Job string `json:"job" yaml:"job" env:"ETL_JOB" env-default:"songplays"`

	Source  Source  `json:"source" yaml:"source"`
	Storage Storage `json:"storage" yaml:"storage"`
	Staging Staging `json:"staging" yaml:"staging"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
}

// Source locates the two input families.
type Source struct {
	SongDir string `json:"song_dir" yaml:"song_dir" env:"ETL_SONG_DIR" env-default:"data/song_data"`
	LogDir  string `json:"log_dir" yaml:"log_dir" env:"ETL_LOG_DIR" env-default:"data/log_data"`
	// Ext is the file extension collected under both directories.
	Ext string `json:"ext" yaml:"ext" env:"ETL_SOURCE_EXT" env-default:".json"`
}

// Storage selects the repository backend.
type Storage struct {
	// Kind is a registered storage kind: postgres, sqlite or mssql.
	Kind string `json:"kind" yaml:"kind" env:"ETL_STORAGE_KIND" env-default:"postgres"`
	// DSN may reference environment variables ($PGPASSWORD, ${HOST}).
	DSN string `json:"dsn" yaml:"dsn" env:"ETL_DSN" env-default:"host=127.0.0.1 dbname=sparkifydb user=student password=student"`
}

// Staging holds the directory for per-table staging files.
type Staging struct {
	Dir string `json:"dir" yaml:"dir" env:"ETL_STAGING_DIR" env-default:"tmp"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is one of "", "none", "pushgateway", "datadog".
	Backend        string `json:"backend" yaml:"backend" env:"METRICS_BACKEND" env-default:"none"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" env:"PUSHGATEWAY_URL" env-default:"http://localhost:9091"`
	Tags           string `json:"tags" yaml:"tags" env:"METRICS_TAGS"`
	// FlushEvery is a Go duration string ("30s", "2m").
	FlushEvery string `json:"flush_every" yaml:"flush_every" env:"METRICS_FLUSH_EVERY" env-default:"60s"`
}

// FlushInterval parses FlushEvery; empty means zero (backend default).
func (m Metrics) FlushInterval() (time.Duration, error) {
	if m.FlushEvery == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.FlushEvery)
	if err != nil {
		return 0, fmt.Errorf("flush_every: %w", err)
	}
	return d, nil
}

// Load reads the pipeline file at path with environment overrides.
// An empty path reads the environment (and defaults) only.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	if path == "" {
		if err := cleanenv.ReadEnv(&p); err != nil {
			return Pipeline{}, fmt.Errorf("read config from env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &p); err != nil {
		return Pipeline{}, fmt.Errorf("read config %s: %w", path, err)
	}
	p.Storage.DSN = os.ExpandEnv(p.Storage.DSN)
	return p, nil
}

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding; Path is the dotted field path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var metricsBackends = map[string]bool{"": true, "none": true, "pushgateway": true, "datadog": true}

// ValidatePipeline checks p without touching the network or the database.
// storageKinds lists the registered storage backends.
func ValidatePipeline(p Pipeline, storageKinds []string) []Issue {
	var out []Issue
	errf := func(path, format string, a ...any) {
		out = append(out, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		out = append(out, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(p.Storage.Kind) == "" {
		errf("storage.kind", "must be set")
	} else if !slices.Contains(storageKinds, p.Storage.Kind) {
		errf("storage.kind", "unknown kind %q (registered: %s)", p.Storage.Kind, strings.Join(storageKinds, ", "))
	}
	if strings.TrimSpace(p.Storage.DSN) == "" {
		errf("storage.dsn", "must be set")
	}
	if strings.TrimSpace(p.Staging.Dir) == "" {
		errf("staging.dir", "must be set")
	}

	for path, dir := range map[string]string{"source.song_dir": p.Source.SongDir, "source.log_dir": p.Source.LogDir} {
		if strings.TrimSpace(dir) == "" {
			errf(path, "must be set")
			continue
		}
		fi, err := os.Stat(dir)
		switch {
		case os.IsNotExist(err):
			warnf(path, "%s does not exist; no files will be loaded", dir)
		case err != nil:
			errf(path, "%v", err)
		case !fi.IsDir():
			errf(path, "%s is not a directory", dir)
		}
	}
	if p.Source.Ext == "" {
		warnf("source.ext", "empty extension matches every file")
	}

	if !metricsBackends[p.Metrics.Backend] {
		errf("metrics.backend", "unknown backend %q", p.Metrics.Backend)
	}
	if p.Metrics.Backend == "pushgateway" && p.Metrics.PushgatewayURL == "" {
		errf("metrics.pushgateway_url", "required for the pushgateway backend")
	}
	if d, err := p.Metrics.FlushInterval(); err != nil {
		errf("metrics.flush_every", "%v", err)
	} else if d < 0 {
		errf("metrics.flush_every", "must not be negative")
	}

	// map iteration above is unordered
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
