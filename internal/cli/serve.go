package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depmap/internal/config"
	"github.com/matzehuels/depmap/internal/server"
)

// serveCommand starts the HTTP query API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		entries  int
		ttl      time.Duration
		interval time.Duration
		metrics  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve graph queries over HTTP",
		Long: `Serve loads the graph once and answers JSON queries under /api until
interrupted. /healthz reports readiness and /metrics exposes Prometheus
metrics. With --reload the package source is reloaded periodically and
the served graph swapped atomically; a failed reload keeps the old graph.`,
		Example: `  depmap serve --aports ~/aports
  depmap serve --snapshot latest --addr :8080
  curl 'localhost:8080/api/deps/curl?recursive=true&depth=2'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			opts := server.Options{Logger: c.Logger, CacheEntries: entries, CacheTTL: ttl}
			if metrics {
				opts.Metrics = server.NewMetrics()
				opts.Metrics.Register()
			}

			res, err := c.load(ctx)
			if err != nil {
				return err
			}
			srv, err := server.New(res.Graph, opts)
			if err != nil {
				return err
			}
			defer srv.Close()

			if interval > 0 {
				go c.reload(ctx, srv, interval)
			}
			printSuccess("Serving %d packages on http://%s", res.Graph.NodeCount(), addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, "+config.DefaultAddr+")")
	cmd.Flags().IntVar(&entries, "cache-entries", 0, "response cache size (0: default, -1: disabled)")
	cmd.Flags().DurationVar(&ttl, "cache-ttl", server.DefaultResponseTTL, "response cache TTL")
	cmd.Flags().DurationVar(&interval, "reload", 0, "reload the package source at this interval (0: never)")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "expose Prometheus metrics on /metrics")
	return cmd
}

func (c *CLI) reload(ctx context.Context, srv *server.Server, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		opts, err := c.options()
		if err != nil {
			c.Logger.Error("reload", "err", err)
			continue
		}
		runner, closeRunner, err := c.newRunner(ctx, opts)
		if err != nil {
			c.Logger.Error("reload", "err", err)
			continue
		}
		res, err := runner.Execute(ctx, opts)
		closeRunner()
		if err != nil {
			c.Logger.Error("reload failed, keeping current graph", "err", err)
			continue
		}
		srv.SetGraph(res.Graph)
		c.Logger.Info("graph reloaded", "source", res.Source, "packages", res.Graph.NodeCount())
	}
}
