package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depmap/pkg/buildinfo"
	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/deps/aports"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
	"github.com/matzehuels/depmap/pkg/io"
	"github.com/matzehuels/depmap/pkg/observability"
	"github.com/matzehuels/depmap/pkg/store"
)

// Runner loads package sets and builds graphs. It holds no per-run state
// and may be shared between goroutines.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  store.Store // optional; required for Options.Snapshot
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching and a nil keyer
// selects the default one.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute loads the package set selected by opts and builds its graph.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := r.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	res.Stats.LoadTime = time.Since(start)

	buildStart := time.Now()
	g, err := graph.Build(res.Packages)
	res.Stats.BuildTime = time.Since(buildStart)
	if err != nil {
		observability.Scan().OnBuildComplete(ctx, 0, 0, 0, res.Stats.BuildTime, err)
		return nil, err
	}
	res.Graph = g
	res.Stats.NodeCount = g.NodeCount()
	res.Stats.EdgeCount = g.EdgeCount()
	rep := g.Report()
	res.Stats.Unresolved = len(rep.Unresolved)
	res.Stats.Warnings = len(rep.Warnings)
	observability.Scan().OnBuildComplete(ctx, res.Stats.NodeCount, res.Stats.EdgeCount, res.Stats.Unresolved, res.Stats.BuildTime, nil)

	for _, w := range rep.Warnings {
		r.Logger.Debug(w.Message, "code", w.Code)
	}
	r.Logger.Info("built graph",
		"source", res.Source,
		"packages", res.Stats.NodeCount,
		"edges", res.Stats.EdgeCount,
		"unresolved", res.Stats.Unresolved,
		"duration", res.Stats.LoadTime+res.Stats.BuildTime)
	if res.Stats.Warnings > 0 {
		r.Logger.Warnf("%d duplicate name or alias declarations ignored", res.Stats.Warnings)
	}
	return res, nil
}

// Load returns the package set without building a graph.
func (r *Runner) Load(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Source() {
	case SourceFile:
		pkgs, err := io.ImportPackages(opts.From)
		if err != nil {
			return nil, err
		}
		r.Logger.Debug("loaded package set", "path", opts.From, "packages", len(pkgs))
		return &Result{Source: SourceFile, Packages: pkgs}, nil

	case SourceSnapshot:
		if r.Store == nil {
			return nil, errors.New(errors.ErrCodeUnsupported, "no snapshot store configured")
		}
		snap, err := store.Resolve(ctx, r.Store, opts.Snapshot)
		if err != nil {
			return nil, err
		}
		r.Logger.Debug("loaded snapshot", "id", snap.ID, "name", snap.Name, "packages", len(snap.Packages))
		return &Result{Source: SourceSnapshot, Packages: snap.Packages, SnapshotID: snap.ID}, nil
	}
	return r.scan(ctx, opts)
}

// Scan runs (or reuses) a scan of opts.Root.
func (r *Runner) Scan(ctx context.Context, opts Options) (*aports.Result, bool, error) {
	if err := opts.Validate(); err != nil {
		return nil, false, err
	}
	res, err := r.scan(ctx, opts)
	if err != nil {
		return nil, false, err
	}
	return res.Scan, res.Source == SourceCache, nil
}

func (r *Runner) scan(ctx context.Context, opts Options) (*Result, error) {
	if opts.Root == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no aports root configured")
	}
	s, err := aports.New(opts.Root, aports.Options{
		Repositories: opts.Repositories,
		Workers:      opts.Workers,
		Vars:         opts.Vars,
		Logger:       r.Logger,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	descs, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}
	repos, err := s.Repositories()
	if err != nil {
		return nil, err
	}
	key := r.Keyer.ScanKey(cache.ScanKeyOpts{
		Root:         s.Root(),
		Repositories: repos,
		Fingerprint:  aports.Fingerprint(descs),
		Version:      buildinfo.Key(),
	})

	if !opts.Refresh {
		if cached, ok := r.cachedScan(ctx, key); ok {
			r.Logger.Debug("scan cache hit", "files", cached.Stats.Files, "packages", len(cached.Packages))
			return &Result{Source: SourceCache, Packages: cached.Packages, Scan: cached, Stats: Stats{Failed: cached.Stats.Failed}}, nil
		}
	}

	res, err := s.Parse(ctx, descs, start)
	if err != nil {
		return nil, err
	}
	r.storeScan(ctx, key, res, opts.CacheTTL)
	if res.Stats.Failed > 0 {
		r.Logger.Warnf("skipped %d of %d descriptors that failed to parse", res.Stats.Failed, res.Stats.Files)
	}
	return &Result{Source: SourceScan, Packages: res.Packages, Scan: res, Stats: Stats{Failed: res.Stats.Failed}}, nil
}

func (r *Runner) cachedScan(ctx context.Context, key string) (*aports.Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("scan cache unavailable", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, cache.PrefixScan)
		return nil, false
	}
	var res aports.Result
	if err := json.Unmarshal(data, &res); err != nil {
		r.Logger.Debug("discarding corrupt scan cache entry", "err", err)
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, cache.PrefixScan)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, cache.PrefixScan)
	return &res, true
}

func (r *Runner) storeScan(ctx context.Context, key string, res *aports.Result, ttl time.Duration) {
	data, err := json.Marshal(res)
	if err != nil {
		r.Logger.Debug("scan result not cacheable", "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("could not cache scan", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, cache.PrefixScan, len(data))
}
