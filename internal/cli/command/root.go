package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/amrsnap/internal/cli/output"
	"github.com/yndnr/amrsnap/internal/config"
	"github.com/yndnr/amrsnap/internal/core/catalog"
	"github.com/yndnr/amrsnap/internal/core/reconstruct"
	"github.com/yndnr/amrsnap/internal/infra/buildinfo"
	"github.com/yndnr/amrsnap/internal/storage/h5"
	"github.com/yndnr/amrsnap/internal/storage/headercache"
	"github.com/yndnr/amrsnap/internal/telemetry/logger"
	"github.com/yndnr/amrsnap/internal/telemetry/metric"
)

const (
	metaSource = "amrsnap.source"
	metaSink   = "amrsnap.sink"
)

// AppOption configures App.
type AppOption func(*cli.App)

// WithSource replaces the filesystem HDF5 reader.
func WithSource(src h5.Source) AppOption {
	return func(app *cli.App) {
		app.Metadata[metaSource] = src
	}
}

// WithSink replaces the filesystem HDF5 writer used by --save.
func WithSink(sink h5.Sink) AppOption {
	return func(app *cli.App) {
		app.Metadata[metaSink] = sink
	}
}

// WithOutput redirects command output and diagnostics.
func WithOutput(stdout, stderr io.Writer) AppOption {
	return func(app *cli.App) {
		app.Writer = stdout
		app.ErrWriter = stderr
	}
}

// App creates the CLI application.
func App(opts ...AppOption) *cli.App {
	app := &cli.App{
		Name:    "amrsnap",
		Usage:   "Inspect and reconstruct AMR simulation snapshots",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CatalogCommand(),
			TimesCommand(),
			SliceCommand(),
			BoxCommand(),
			ProjectionCommand(),
			SpectrumCommand(),
			WatchCommand(),
			VersionCommand(),
		},
		Metadata:  map[string]any{},
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"AMRSNAP_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Simulation output root directory",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent shard reads (0 = GOMAXPROCS)",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Do not use the persistent header cache",
		},
	}
}

// overrides maps explicitly set flags onto configuration keys.
func overrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	if c.IsSet("root") {
		m["output.root"] = c.String("root")
	}
	if c.IsSet("log-level") {
		m["log.level"] = c.String("log-level")
	}
	if c.IsSet("workers") {
		m["engine.workers"] = c.Int("workers")
	}
	if c.Bool("no-cache") {
		m["cache.enabled"] = false
	}
	if c.IsSet("metrics-addr") {
		m["metrics.addr"] = c.String("metrics-addr")
	}
	if c.IsSet("debounce") {
		m["watch.debounce"] = c.Duration("debounce").String()
	}
	return m
}

// env is the per-invocation wiring shared by data commands.
type env struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metric.Registry
	cache   *headercache.Cache
	cat     *catalog.Catalog
	rec     *reconstruct.Reconstructor
	sink    h5.Sink

	stdout io.Writer
	format output.Format
	fmt    output.Formatter
}

func openEnv(c *cli.Context) (*env, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(c.String("config"), overrides(c))
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)

	e := &env{
		cfg:     cfg,
		log:     log,
		metrics: metric.NewRegistry(),
		sink:    h5.NewFileSink(),
		stdout:  c.App.Writer,
		format:  format,
		fmt:     output.NewFormatter(format, c.Bool("wide")),
	}
	if sink, ok := c.App.Metadata[metaSink].(h5.Sink); ok {
		e.sink = sink
	}

	catOpts := []catalog.Option{
		catalog.WithLogger(log),
		catalog.WithMetrics(e.metrics),
	}
	if src, ok := c.App.Metadata[metaSource].(h5.Source); ok {
		catOpts = append(catOpts, catalog.WithSource(src))
	}
	if cfg.Cache.Enabled {
		if cache := openCache(cfg, log); cache != nil {
			e.cache = cache
			catOpts = append(catOpts, catalog.WithHeaderCache(cache))
		}
	}

	e.cat, err = catalog.Open(c.Context, cfg.Output.Root, catOpts...)
	if err != nil {
		e.Close()
		return nil, err
	}

	recOpts := []reconstruct.Option{
		reconstruct.WithLogger(log),
		reconstruct.WithMetrics(e.metrics),
	}
	if cfg.Engine.Workers > 0 {
		recOpts = append(recOpts, reconstruct.WithWorkers(cfg.Engine.Workers))
	}
	e.rec = reconstruct.New(e.cat, recOpts...)
	return e, nil
}

// openCache opens the header cache. A cache that cannot be opened, for
// example because another process holds its lock, only costs speed.
func openCache(cfg *config.Config, log logger.Logger) *headercache.Cache {
	dir, err := cfg.CacheDir()
	if err != nil {
		log.Warn("header cache disabled", "error", err)
		return nil
	}
	cache, err := headercache.Open(headercache.Config{Dir: dir}, logger.Slog(log))
	if err != nil {
		log.Warn("header cache disabled", "dir", dir, "error", err)
		return nil
	}
	return cache
}

// Close releases the header cache.
func (e *env) Close() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Close()
}

// print writes data with the selected formatter.
func (e *env) print(data any) error {
	return e.fmt.Format(e.stdout, data)
}

// withEnv wraps a command action with env setup and teardown.
func withEnv(action func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := openEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return action(c, e)
	}
}

// PrintError prints an error message to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
