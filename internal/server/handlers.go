package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/depmap/pkg/analyze"
	"github.com/matzehuels/depmap/pkg/buildinfo"
	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
	"github.com/matzehuels/depmap/pkg/io"
	"github.com/matzehuels/depmap/pkg/render/nodelink"
)

const (
	minSearchLen      = 2
	defaultSearchSize = 20
	defaultGraphDepth = 2
	maxGraphDepth     = 6
	defaultTop        = 20
)

type packageRef struct {
	Name       string    `json:"name"`
	Kind       deps.Kind `json:"kind,omitempty"`
	Repository string    `json:"repository,omitempty"`
}

type packageInfo struct {
	Name           string       `json:"name"`
	Version        string       `json:"version"`
	Description    string       `json:"description,omitempty"`
	Repository     string       `json:"repository,omitempty"`
	Origin         string       `json:"origin,omitempty"`
	URL            string       `json:"url,omitempty"`
	License        string       `json:"license,omitempty"`
	Maintainer     string       `json:"maintainer,omitempty"`
	Provides       []string     `json:"provides,omitempty"`
	DepsCount      int          `json:"deps_count"`
	RdepsCount     int          `json:"rdeps_count"`
	TotalDepsCount int          `json:"total_deps_count"`
	Deps           []packageRef `json:"deps"`
	Rdeps          []packageRef `json:"rdeps"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  buildinfo.Version,
		"packages": s.Graph().NodeCount(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	g := s.state(r).g
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, err := intParam(r, "limit", defaultSearchSize)
	if err != nil {
		writeError(w, err)
		return
	}
	results := []packageRef{}
	if len(q) >= minSearchLen {
		for _, name := range g.Search(q, limit) {
			p, _ := g.Package(name)
			results = append(results, packageRef{Name: name, Repository: p.Repository})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": results})
}

// lookup resolves the {name} URL parameter, accepting provides aliases.
func lookup(g *graph.Graph, r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if resolved, ok := g.Resolve(name); ok {
		return resolved, nil
	}
	return "", errors.New(errors.ErrCodePackageNotFound, "package %q not found", name)
}

func kindsParam(r *http.Request) (deps.KindSet, error) {
	kinds, err := deps.ParseKinds(r.URL.Query().Get("type"))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "%v", err)
	}
	return kinds, nil
}

func refs(g *graph.Graph, ns []graph.Neighbor) []packageRef {
	out := make([]packageRef, len(ns))
	for i, n := range ns {
		p, _ := g.Package(n.Name)
		out[i] = packageRef{Name: n.Name, Kind: n.Kind, Repository: p.Repository}
	}
	return out
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	g := s.state(r).g
	name, err := lookup(g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, _ := g.Package(name)
	fwd, _ := g.Dependencies(name, deps.AllKinds)
	rev, _ := g.ReverseDependencies(name, deps.AllKinds)
	t, err := g.RecursiveDependencies(r.Context(), name, deps.AllKinds, graph.Unlimited)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, packageInfo{
		Name:           p.Name,
		Version:        p.FullVersion(),
		Description:    p.Description,
		Repository:     p.Repository,
		Origin:         p.Origin,
		URL:            p.URL,
		License:        p.License,
		Maintainer:     p.Maintainer,
		Provides:       p.Provides,
		DepsCount:      len(fwd),
		RdepsCount:     len(rev),
		TotalDepsCount: len(t.Nodes) - 1,
		Deps:           refs(g, fwd),
		Rdeps:          refs(g, rev),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	name, err := lookup(st.g, r)
	if err != nil {
		writeError(w, err)
		return
	}
	kinds, err := kindsParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a := st.analyzer
	if kinds != deps.AllKinds {
		a = analyze.New(st.g, kinds)
	}
	pa, err := a.AnalyzePackage(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	fp, err := a.InstallFootprint(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"package": pa, "footprint": fp})
}

func (s *Server) handleDeps(reverse bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := s.state(r).g
		name, err := lookup(g, r)
		if err != nil {
			writeError(w, err)
			return
		}
		kinds, err := kindsParam(r)
		if err != nil {
			writeError(w, err)
			return
		}

		if !boolParam(r, "recursive") {
			var ns []graph.Neighbor
			if reverse {
				ns, err = g.ReverseDependencies(name, kinds)
			} else {
				ns, err = g.Dependencies(name, kinds)
			}
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"name": name, "reverse": reverse, "type": kinds.String(), "packages": refs(g, ns)})
			return
		}

		depth, err := intParam(r, "depth", graph.Unlimited)
		if err != nil {
			writeError(w, err)
			return
		}
		var t *graph.Traversal
		if reverse {
			t, err = g.RecursiveReverseDependencies(r.Context(), name, kinds, depth)
		} else {
			t, err = g.RecursiveDependencies(r.Context(), name, kinds, depth)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// handleGraph serves a bounded subgraph as node-link JSON, DOT or SVG.
func (s *Server) handleGraph(reverse bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := s.state(r).g
		name, err := lookup(g, r)
		if err != nil {
			writeError(w, err)
			return
		}
		kinds, err := kindsParam(r)
		if err != nil {
			writeError(w, err)
			return
		}
		depth, err := intParam(r, "depth", defaultGraphDepth)
		if err != nil {
			writeError(w, err)
			return
		}
		if depth > maxGraphDepth {
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "depth must be at most %d", maxGraphDepth))
			return
		}
		sg, err := g.Subgraph(r.Context(), name, kinds, depth, reverse)
		if err != nil {
			writeError(w, err)
			return
		}

		opts := nodelink.Options{Detailed: boolParam(r, "detailed")}
		if reverse {
			opts.RankDir = "BT"
		}
		switch format := r.URL.Query().Get("format"); format {
		case "", "json":
			var buf bytes.Buffer
			if err := io.WriteSubgraph(sg, &buf); err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(buf.Bytes())
		case "dot":
			w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
			_, _ = w.Write([]byte(nodelink.ToDOT(sg, opts)))
		case "svg":
			svg, err := nodelink.RenderSVG(r.Context(), nodelink.ToDOT(sg, opts))
			if err != nil {
				writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "render svg"))
				return
			}
			w.Header().Set("Content-Type", "image/svg+xml")
			_, _ = w.Write(svg)
		default:
			writeError(w, errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want json, dot or svg)", format))
		}
	}
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	g := s.state(r).g
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "from and to are required"))
		return
	}
	if resolved, ok := g.Resolve(from); ok {
		from = resolved
	}
	if resolved, ok := g.Resolve(to); ok {
		to = resolved
	}
	kinds, err := kindsParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	path, err := g.ShortestPath(r.Context(), from, to, kinds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": from, "to": to, "path": path, "length": len(path) - 1})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	g := s.state(r).g
	kinds, err := kindsParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	cycles, err := g.DetectCycles(r.Context(), kinds)
	if err != nil {
		writeError(w, err)
		return
	}
	count := len(cycles)
	if limit > 0 && len(cycles) > limit {
		cycles = cycles[:limit]
	}
	if cycles == nil {
		cycles = []graph.Cycle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "cycles": cycles})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "top", 10)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state(r).g.Stats(n))
}

func (s *Server) handleMostDepended(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", defaultTop)
	if err != nil {
		writeError(w, err)
		return
	}
	kinds, err := kindsParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	type entry struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	out := []entry{}
	for _, e := range s.state(r).g.MostDepended(n, kinds) {
		out = append(out, entry{Name: e.Name, Count: e.Degree})
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": out})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	st := s.state(r)
	top, err := intParam(r, "top", defaultTop)
	if err != nil {
		writeError(w, err)
		return
	}
	kinds, err := kindsParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a := st.analyzer
	if kinds != deps.AllKinds {
		a = analyze.New(st.g, kinds)
	}
	rep, err := a.Report(r.Context(), top)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
