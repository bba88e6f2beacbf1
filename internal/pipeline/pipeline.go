// Package pipeline sequences the two source families (song catalog, then
// activity logs) against one repository.
//
// Table loads are isolated: a failed load is recorded in the Summary and the
// run moves on. Malformed input aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"songetl/internal/config"
	"songetl/internal/datasource/file"
	"songetl/internal/frame"
	"songetl/internal/loader"
	"songetl/internal/logging"
	"songetl/internal/metrics"
	jsonparser "songetl/internal/parser/json"
	"songetl/internal/projector"
	"songetl/internal/resolver"
	"songetl/internal/schema"
	"songetl/internal/storage"
)

// Store is what a run needs from the repository: bulk copy and read-back.
type Store interface {
	loader.Copier
	resolver.TableReader
}

// Source locates the input families.
type Source struct {
	SongDir string
	LogDir  string
	Ext     string
}

// Runner executes one ETL run. All fields except Logger are required.
type Runner struct {
	Repo   Store
	Loader *loader.Loader
	Logger *slog.Logger
	Job    string
	RunID  string
}

// Execute opens the configured repository, runs both families and closes it.
// An empty runID gets a fresh UUID.
func Execute(ctx context.Context, p config.Pipeline, runID string, logger *slog.Logger) (Summary, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logging.OrDiscard(logger).With("run_id", runID)

	repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DSN})
	if err != nil {
		return Summary{RunID: runID}, err
	}
	defer repo.Close()

	r := &Runner{
		Repo:   repo,
		Loader: &loader.Loader{Repo: repo, StagingDir: p.Staging.Dir, Logger: logger, Job: p.Job},
		Logger: logger,
		Job:    p.Job,
		RunID:  runID,
	}
	return r.Run(ctx, Source{SongDir: p.Source.SongDir, LogDir: p.Source.LogDir, Ext: p.Source.Ext})
}

// Run processes the song catalog and then the activity logs.
//
// The returned Summary holds one Result per attempted table load, even when
// err is non-nil.
func (r *Runner) Run(ctx context.Context, src Source) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: r.RunID}
	log := r.log()

	log.Info("run started", "song_dir", src.SongDir, "log_dir", src.LogDir)

	songFiles, results, err := r.ProcessSongFiles(ctx, src.SongDir, src.Ext)
	sum.SongFiles = songFiles
	sum.Results = append(sum.Results, results...)
	if err != nil {
		return sum, err
	}

	logFiles, unmatched, results, err := r.ProcessLogFiles(ctx, src.LogDir, src.Ext)
	sum.LogFiles = logFiles
	sum.Unmatched = unmatched
	sum.Results = append(sum.Results, results...)
	if err != nil {
		return sum, err
	}

	sum.Duration = time.Since(start)
	log.Info("run finished", "tables", len(sum.Results), "failed", len(sum.Failed()), "took", sum.Duration.Truncate(time.Millisecond))
	return sum, nil
}

// ProcessSongFiles loads every catalog file under dir and loads the artists
// and songs tables, in that order.
func (r *Runner) ProcessSongFiles(ctx context.Context, dir, ext string) (int, []loader.Result, error) {
	raw, nfiles, err := r.extract(ctx, "extract_songs", dir, ext, projector.CatalogColumns)
	if err != nil {
		return nfiles, nil, err
	}
	metrics.RecordRow(r.job(), "song_records", int64(raw.Len()))

	songs, err := projector.Songs(raw)
	if err != nil {
		return nfiles, nil, err
	}
	artists, err := projector.Artists(raw)
	if err != nil {
		return nfiles, nil, err
	}

	results := []loader.Result{
		r.Loader.Load(ctx, schema.Artists, artists),
		r.Loader.Load(ctx, schema.Songs, songs),
	}
	return nfiles, results, nil
}

// ProcessLogFiles loads every activity-log file under dir and loads the time,
// users and songplays tables. It also reports how many songplays could not
// be matched to the catalog.
//
// songplays identities come from the songs and artists tables as persisted,
// so ProcessSongFiles must have run first.
func (r *Runner) ProcessLogFiles(ctx context.Context, dir, ext string) (int, int, []loader.Result, error) {
	raw, nfiles, err := r.extract(ctx, "extract_logs", dir, ext, projector.EventColumns)
	if err != nil {
		return nfiles, 0, nil, err
	}
	metrics.RecordRow(r.job(), "log_records", int64(raw.Len()))

	events, err := projector.NextSong(raw)
	if err != nil {
		return nfiles, 0, nil, err
	}
	metrics.RecordRow(r.job(), "next_song", int64(events.Len()))
	r.log().Debug("filtered events", "stage", "transform", "records", raw.Len(), "next_song", events.Len())

	timeRows, err := projector.Time(events)
	if err != nil {
		return nfiles, 0, nil, err
	}
	users, err := projector.Users(raw)
	if err != nil {
		return nfiles, 0, nil, err
	}

	var results []loader.Result
	results = append(results, r.Loader.Load(ctx, schema.Time, timeRows))
	results = append(results, r.Loader.Load(ctx, schema.Users, users))

	res, unmatched := r.loadSongplays(ctx, events)
	results = append(results, res)
	return nfiles, unmatched, results, nil
}

// loadSongplays resolves identities and loads the fact table. A resolver
// failure is reported as a failed songplays load.
func (r *Runner) loadSongplays(ctx context.Context, events frame.Frame) (loader.Result, int) {
	start := time.Now()
	resolved, err := resolver.Resolve(ctx, r.Repo, events)
	metrics.RecordStep(r.job(), "resolve", err, time.Since(start))
	if err != nil {
		r.log().Error("resolve failed", "stage", "resolve", "table", schema.SongplaysTable, "err", err)
		metrics.RecordTableLoad(r.job(), schema.SongplaysTable, 0, err)
		return loader.Result{Table: schema.SongplaysTable, Err: err, Duration: time.Since(start)}, 0
	}

	unmatched := resolver.Unmatched(resolved)
	metrics.RecordRow(r.job(), "unmatched_songplays", int64(unmatched))
	r.log().Info("resolved songplays", "stage", "resolve", "events", resolved.Len(), "unmatched", unmatched)

	songplays, err := projector.Songplays(resolved)
	if err != nil {
		return loader.Result{Table: schema.SongplaysTable, Err: err, Duration: time.Since(start)}, unmatched
	}
	return r.Loader.Load(ctx, schema.Songplays, songplays), unmatched
}

// extract collects and parses one source family.
func (r *Runner) extract(ctx context.Context, step, dir, ext string, columns []string) (frame.Frame, int, error) {
	start := time.Now()
	paths, err := file.Collect(dir, ext)
	if err != nil {
		metrics.RecordStep(r.job(), step, err, time.Since(start))
		return frame.Frame{}, 0, err
	}
	r.log().Info(fmt.Sprintf("%d files found in %s", len(paths), dir), "stage", step)

	raw, err := jsonparser.LoadFiles(ctx, paths, columns)
	metrics.RecordStep(r.job(), step, err, time.Since(start))
	if err != nil {
		return frame.Frame{}, len(paths), err
	}
	r.log().Debug("parsed records", "stage", step, "records", raw.Len())
	return raw, len(paths), nil
}

func (r *Runner) log() *slog.Logger { return logging.OrDiscard(r.Logger) }

func (r *Runner) job() string {
	if r.Job == "" {
		return "etl"
	}
	return r.Job
}
