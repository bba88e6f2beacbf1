package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"songetl/internal/config"
	"songetl/internal/logging"
	"songetl/internal/pipeline"
	"songetl/internal/schema"
	"songetl/internal/storage"

	// register all backends with the storage factory.
	_ "songetl/internal/storage/all"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsage      = 2
	exitTablesFail = 3
)

// appDeps are the side-effecting operations behind the CLI; tests swap them.
type appDeps struct {
	loadConfig   func(path string) (config.Pipeline, error)
	initMetrics  func(ctx context.Context, p config.Pipeline, runID string, log *slog.Logger) (func(), error)
	execute      func(ctx context.Context, p config.Pipeline, runID string, log *slog.Logger) (pipeline.Summary, error)
	createTables func(ctx context.Context, p config.Pipeline) error
	newRunID     func() string
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:   config.Load,
		initMetrics:  initMetrics,
		execute:      pipeline.Execute,
		createTables: createTables,
		newRunID:     uuid.NewString,
	}
}

// main loads the pipeline config and dispatches to a subcommand.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	cancel()
	os.Exit(code)
}

// usageError marks errors that should exit with exitUsage.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitError carries a specific exit code out of a subcommand.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
func (e exitError) Unwrap() error { return e.err }

type globalFlags struct {
	configPath     string
	envFile        string
	verbose        bool
	metricsBackend string
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	root := newRootCmd(stdout, stderr, deps)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "etl: %v\n", err)

	var ue usageError
	var ee exitError
	switch {
	case errors.As(err, &ue), strings.HasPrefix(err.Error(), "unknown command"):
		fmt.Fprintln(stderr, "usage: etl [run|create-tables|validate] --config path/to/pipeline.yaml")
		return exitUsage
	case errors.As(err, &ee):
		return ee.code
	default:
		return exitFailure
	}
}

func newRootCmd(stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "etl",
		Short:         "Load song catalog and activity logs into the songplay star schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "pipeline config file (JSON or YAML); empty reads the environment only")
	pf.StringVar(&g.envFile, "env-file", "", "dotenv file loaded into the environment before the config is read")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logs")
	pf.StringVar(&g.metricsBackend, "metrics-backend", "", "metrics backend (none, pushgateway, datadog); overrides config")

	root.AddCommand(
		newRunCmd(&g, stdout, stderr, deps),
		newCreateTablesCmd(&g, stdout, stderr, deps),
		newValidateCmd(&g, stdout, stderr, deps),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}

// loadValidated reads the config, applies flag overrides and fails on
// validation errors. Warnings are printed and ignored.
func loadValidated(g *globalFlags, stderr io.Writer, deps appDeps) (config.Pipeline, error) {
	if g.envFile != "" {
		// Variables already set in the environment win.
		if err := godotenv.Load(g.envFile); err != nil {
			return config.Pipeline{}, fmt.Errorf("load env file: %w", err)
		}
	}
	p, err := deps.loadConfig(g.configPath)
	if err != nil {
		return config.Pipeline{}, err
	}
	if g.metricsBackend != "" {
		p.Metrics.Backend = g.metricsBackend
	}

	issues := config.ValidatePipeline(p, storage.Kinds())
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return p, fmt.Errorf("configuration is invalid: %s", displayPath(g.configPath))
	}
	return p, nil
}

func displayPath(p string) string {
	if p == "" {
		return "(environment)"
	}
	return p
}

func newRunCmd(g *globalFlags, stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the ETL: load songs, artists, time, users and songplays",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadValidated(g, stderr, deps)
			if err != nil {
				return err
			}
			log := logging.New(g.verbose, stderr)
			runID := deps.newRunID()

			cleanup, err := deps.initMetrics(cmd.Context(), p, runID, log)
			if err != nil {
				return err
			}
			defer cleanup()

			sum, err := deps.execute(cmd.Context(), p, runID, log)
			if werr := sum.Write(stdout); werr != nil && err == nil {
				err = werr
			}
			if err != nil {
				return err
			}
			if !sum.OK() {
				return exitError{code: exitTablesFail, err: fmt.Errorf("%d table load(s) failed", len(sum.Failed()))}
			}
			return nil
		},
	}
}

func newCreateTablesCmd(g *globalFlags, stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "create-tables",
		Short: "Drop and recreate the five songplay tables",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadValidated(g, stderr, deps)
			if err != nil {
				return err
			}
			if err := deps.createTables(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "created %d tables\n", len(schema.All()))
			return nil
		},
	}
}

func newValidateCmd(g *globalFlags, stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadValidated(g, stderr, deps); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "configuration is valid: %s\n", displayPath(g.configPath))
			return nil
		},
	}
}

// createTables drops and recreates every table.
func createTables(ctx context.Context, p config.Pipeline) error {
	repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DSN})
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.DropTables(ctx, schema.All()); err != nil {
		return err
	}
	return repo.EnsureTables(ctx, schema.All())
}
