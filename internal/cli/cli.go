// Package cli implements the depmap command-line interface.
//
// Every query command loads a package set first: by scanning an aports
// tree (cached between runs), from a JSON export (--from) or from a saved
// snapshot (--snapshot). Settings come from internal/config and are
// overridden by the persistent flags registered here.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/internal/config"
	"github.com/matzehuels/depmap/pkg/buildinfo"
	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
	"github.com/matzehuels/depmap/pkg/pipeline"
	"github.com/matzehuels/depmap/pkg/store"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
	src        sourceFlags
}

// sourceFlags are the persistent flags selecting the package source.
type sourceFlags struct {
	aports   string
	repos    string
	from     string
	snapshot string
	workers  int
	noCache  bool
	refresh  bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "depmap",
		Short: "depmap maps the dependencies of an Alpine aports tree",
		Long: `depmap parses every APKBUILD in an aports checkout, builds the typed
dependency graph (runtime, build and check edges) and answers questions
about it: what a package pulls in, what breaks when it changes, how two
packages are connected and where the cycles are.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			registerLogHooks(c.Logger)
			return nil
		},
	}
	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default "+config.Path()+")")
	pf.StringVar(&c.src.aports, "aports", "", "aports checkout to scan")
	pf.StringVar(&c.src.repos, "repos", "", "comma-separated repositories to scan (default: all)")
	pf.StringVar(&c.src.from, "from", "", "load packages from a JSON export instead of scanning")
	pf.StringVar(&c.src.snapshot, "snapshot", "", "load packages from a saved snapshot (ID, name or \"latest\")")
	pf.IntVar(&c.src.workers, "workers", 0, "parallel parser workers")
	pf.BoolVar(&c.src.noCache, "no-cache", false, "disable the scan cache")
	pf.BoolVar(&c.src.refresh, "refresh", false, "rescan even when a cached scan exists")

	root.AddCommand(c.scanCommand())
	root.AddCommand(c.parseCommand())
	root.AddCommand(c.depsCommand(false))
	root.AddCommand(c.depsCommand(true))
	root.AddCommand(c.pathCommand())
	root.AddCommand(c.cyclesCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.compareCommand())
	root.AddCommand(c.reportCommand())
	root.AddCommand(c.visualizeCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads settings once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// options merges flags over the configured settings.
func (c *CLI) options() (pipeline.Options, error) {
	cfg, err := c.config()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := cfg.PipelineOptions()
	if c.src.aports != "" {
		opts.Root = c.src.aports
	}
	if c.src.repos != "" {
		opts.Repositories = config.SplitList(c.src.repos)
	}
	if c.src.workers > 0 {
		opts.Workers = c.src.workers
	}
	opts.From = c.src.from
	opts.Snapshot = c.src.snapshot
	opts.Refresh = c.src.refresh
	return opts, opts.Validate()
}

// newRunner creates a pipeline runner wired to the configured cache and,
// when needed, the snapshot store. The returned func releases both.
func (c *CLI) newRunner(ctx context.Context, opts pipeline.Options) (*pipeline.Runner, func(), error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	var sc cache.Cache = cache.NewNullCache()
	if !c.src.noCache && opts.Source() == pipeline.SourceScan {
		if sc, err = cfg.OpenCache(ctx, c.Logger); err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
	}
	runner := pipeline.NewRunner(sc, nil, c.Logger)
	if opts.Source() == pipeline.SourceSnapshot {
		st, err := cfg.OpenStore(ctx)
		if err != nil {
			sc.Close()
			return nil, nil, fmt.Errorf("open snapshot store: %w", err)
		}
		runner.Store = st
	}
	return runner, func() {
		sc.Close()
		if runner.Store != nil {
			runner.Store.Close()
		}
	}, nil
}

// load builds the graph for the selected source, with a spinner while
// scanning.
func (c *CLI) load(ctx context.Context) (*pipeline.Result, error) {
	opts, err := c.options()
	if err != nil {
		return nil, err
	}
	runner, closeRunner, err := c.newRunner(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closeRunner()

	spinner := newSpinnerWithContext(ctx, loadMessage(opts))
	spinner.Start()
	res, err := runner.Execute(ctx, opts)
	if err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
		} else {
			spinner.StopWithError("Loading failed")
		}
		return nil, err
	}
	spinner.Stop()
	return res, nil
}

func loadMessage(opts pipeline.Options) string {
	switch opts.Source() {
	case pipeline.SourceFile:
		return "Loading " + opts.From + "..."
	case pipeline.SourceSnapshot:
		return "Loading snapshot " + opts.Snapshot + "..."
	}
	return "Scanning " + opts.Root + "..."
}

// openStore opens the configured snapshot store.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	return cfg.OpenStore(ctx)
}

// resolveName maps a package name or provides alias onto a graph node.
func resolveName(g *graph.Graph, name string) (string, error) {
	if resolved, ok := g.Resolve(name); ok {
		return resolved, nil
	}
	err := errors.New(errors.ErrCodePackageNotFound, "package %q not found", name)
	if similar := g.Search(name, 5); len(similar) > 0 {
		err.Message += fmt.Sprintf(" (similar: %v)", similar)
	}
	return "", err
}
