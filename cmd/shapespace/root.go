package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/shapespace"
)

// app is the state shared by all commands of one invocation.
type app struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
	quiet       bool
	runID       string

	cfg         Config
	env         Env
	logger      *shapespace.Logger
	registry    *prometheus.Registry
	collector   shapespace.MetricsCollector
	stopMetrics func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "shapespace",
		Short: "Distance matrices and latent models for shape collections",
		Long: `shapespace derives artifacts from a collection of shape samples.

Samples are listed from a directory, an S3 or MinIO prefix, a Parquet file or
a SQLite table. Their ids are the last digit run of each name.

Examples:
  shapespace distance l1 euclidean --source ./shapes --out ./out
  shapespace model --source s3://bucket/shapes --partitions ms.json --out ./models
  shapespace import precomputed.csv --source ./shapes --out ./out
  shapespace inspect ./out/l1_distance.bin`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML run file")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format (text, json)")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "disable progress bars")
	pf.StringVar(&a.runID, "run-id", "", "run id recorded in logs and reports (default random)")

	root.AddCommand(
		newDistanceCmd(a),
		newModelCmd(a),
		newImportCmd(a),
		newInspectCmd(a),
	)
	return root
}

// init resolves configuration with the precedence defaults < run file <
// environment < flags, then sets up logging and metrics.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	env, err := loadEnv()
	if err != nil {
		return err
	}
	cfg.applyEnv(env)
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	a.cfg, a.env = cfg, env

	levelName := a.logLevel
	if !cmd.Flags().Changed("log-level") && env.LogLevel != "" {
		levelName = env.LogLevel
	}
	level, err := parseLevel(levelName)
	if err != nil {
		return err
	}
	a.logger, err = newLogger(cmd.ErrOrStderr(), a.logFormat, level)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.collector = newPromCollector(a.registry)
	if !a.quiet {
		a.collector = newProgressCollector(a.collector, cmd.ErrOrStderr())
	}
	if a.metricsAddr != "" {
		a.stopMetrics = serveMetrics(a.metricsAddr, a.registry, a.logger)
	}
	return nil
}

func (a *app) close() {
	if a.stopMetrics != nil {
		a.stopMetrics()
		a.stopMetrics = nil
	}
}

func newLogger(w io.Writer, format string, level slog.Level) (*shapespace.Logger, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return shapespace.NewTextLogger(w, level), nil
	case "json":
		return shapespace.NewJSONLogger(w, level), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// pipeline opens the configured source and builds a pipeline over it. The
// caller closes the returned source.
func (a *app) pipeline(ctx context.Context) (*shapespace.Pipeline, *source, error) {
	if a.cfg.Out == "" {
		return nil, nil, fmt.Errorf("no output directory configured (--out)")
	}
	rc := a.cfg.resourceController()
	src, err := openSource(ctx, a.cfg, a.env, rc)
	if err != nil {
		return nil, nil, err
	}
	opts, err := a.cfg.pipelineOptions()
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	opts = append(opts,
		shapespace.WithLogger(a.logger),
		shapespace.WithMetricsCollector(a.collector),
		shapespace.WithResourceController(rc),
	)
	if a.runID != "" {
		opts = append(opts, shapespace.WithRunID(a.runID))
	}
	if a.cfg.Export != "" {
		store, err := openStore(ctx, a.cfg.Export, a.env)
		if err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		opts = append(opts, shapespace.WithExport(store, ""))
	}

	p, err := shapespace.New(src.indexer, src.loader, opts...)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return p, src, nil
}

func printReport(w io.Writer, r *shapespace.Report, dir string) {
	fmt.Fprintf(w, "run %s: %s, %d samples, %d files in %s\n", r.RunID, r.Kind, r.Samples, len(r.Files), dir)
	for _, f := range r.Files {
		fmt.Fprintf(w, "  %s (%d bytes)\n", f.Path, f.Bytes)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	if r.Exported > 0 {
		fmt.Fprintf(w, "  exported %d files\n", r.Exported)
	}
}
