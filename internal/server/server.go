// Package server exposes a dependency graph over a JSON HTTP API.
//
// Routes are served by a chi router. Every API response is cached in an
// in-process LRU keyed by route, query and graph generation, so swapping
// the graph with SetGraph invalidates everything at once. Prometheus
// metrics are served at /metrics.
package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/depmap/pkg/analyze"
	"github.com/matzehuels/depmap/pkg/cache"
	"github.com/matzehuels/depmap/pkg/graph"
)

const (
	// DefaultResponseTTL bounds how long a cached response lives.
	DefaultResponseTTL = 10 * time.Minute

	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Logger *log.Logger
	// Metrics is optional; nil disables /metrics.
	Metrics *Metrics
	// CacheEntries sizes the response cache; zero selects the default and
	// a negative value disables caching.
	CacheEntries int
	CacheTTL     time.Duration
}

// state is the graph being served together with its cache generation.
type state struct {
	g          *graph.Graph
	analyzer   *analyze.Analyzer
	generation string
}

// Server answers graph queries over HTTP. It is safe for concurrent use.
type Server struct {
	cur     atomic.Pointer[state]
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	logger  *log.Logger
	metrics *Metrics
}

// New creates a server for g.
func New(g *graph.Graph, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultResponseTTL
	}
	s := &Server{
		keyer:   cache.NewDefaultKeyer(),
		ttl:     opts.CacheTTL,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if opts.CacheEntries < 0 {
		s.cache = cache.NewNullCache()
	} else {
		mc, err := cache.NewMemoryCache(opts.CacheEntries)
		if err != nil {
			return nil, err
		}
		s.cache = mc
	}
	s.SetGraph(g)
	return s, nil
}

// SetGraph atomically replaces the served graph. Cached responses for the
// previous graph are never served again.
func (s *Server) SetGraph(g *graph.Graph) {
	s.cur.Store(&state{
		g:          g,
		analyzer:   analyze.New(g, 0),
		generation: uuid.NewString(),
	})
}

// Graph returns the graph currently served.
func (s *Server) Graph() *graph.Graph { return s.cur.Load().g }

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.observe)
		r.Use(s.cached)
		r.Get("/search", s.handleSearch)
		r.Get("/package/{name}", s.handlePackage)
		r.Get("/analyze/{name}", s.handleAnalyze)
		r.Get("/deps/{name}", s.handleDeps(false))
		r.Get("/rdeps/{name}", s.handleDeps(true))
		r.Get("/graph/{name}", s.handleGraph(false))
		r.Get("/rdeps-graph/{name}", s.handleGraph(true))
		r.Get("/path", s.handlePath)
		r.Get("/cycles", s.handleCycles)
		r.Get("/stats", s.handleStats)
		r.Get("/most-depended", s.handleMostDepended)
		r.Get("/report", s.handleReport)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no such route", Code: "NOT_FOUND"})
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr, "packages", s.Graph().NodeCount())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the response cache.
func (s *Server) Close() error { return s.cache.Close() }
