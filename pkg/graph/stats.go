package graph

import (
	"cmp"
	"slices"

	"github.com/matzehuels/depmap/pkg/deps"
)

// DegreeEntry pairs a package with an edge count.
type DegreeEntry struct {
	Name   string `json:"name"`
	Degree int    `json:"degree"`
}

// Stats summarizes a graph.
type Stats struct {
	NodeCount       int               `json:"node_count"`
	EdgeCount       int               `json:"edge_count"`
	EdgeCountByKind map[deps.Kind]int `json:"edge_count_by_kind"`
	TopByInDegree   []DegreeEntry     `json:"top_by_in_degree"`
	TopByOutDegree  []DegreeEntry     `json:"top_by_out_degree"`
	OrphanCount     int               `json:"orphan_count"`
	UnresolvedCount int               `json:"unresolved_count"`
	WarningCount    int               `json:"warning_count"`
	AliasCount      int               `json:"alias_count"`
	SubpackageCount int               `json:"subpackage_count"`
	Repositories    map[string]int    `json:"repositories,omitempty"`
}

// Stats computes graph statistics. Degrees count typed edges of all kinds;
// the top lists hold at most n entries, ties broken by insertion order. An
// orphan has no edge of any kind in either direction.
func (g *Graph) Stats(n int) Stats {
	s := Stats{
		NodeCount:       len(g.names),
		EdgeCount:       g.edgeCount,
		EdgeCountByKind: make(map[deps.Kind]int, len(deps.Kinds)),
		UnresolvedCount: len(g.report.Unresolved),
		WarningCount:    len(g.report.Warnings),
		AliasCount:      len(g.aliases),
		Repositories:    make(map[string]int),
	}
	for _, k := range deps.Kinds {
		s.EdgeCountByKind[k] = g.kindCounts[k]
	}
	for id := range g.names {
		if len(g.in[id]) == 0 && len(g.out[id]) == 0 {
			s.OrphanCount++
		}
		p := &g.pkgs[id]
		if p.IsSubpackage() {
			s.SubpackageCount++
		}
		if p.Repository != "" {
			s.Repositories[p.Repository]++
		}
	}
	s.TopByInDegree = g.topBy(n, g.in)
	s.TopByOutDegree = g.topBy(n, g.out)
	return s
}

// MostDepended returns the n packages with the most reverse dependencies of
// the given kinds.
func (g *Graph) MostDepended(n int, kinds deps.KindSet) []DegreeEntry {
	return g.rank(n, func(id int) int { return countKinds(g.in[id], kinds) })
}

func (g *Graph) topBy(n int, adj [][]edge) []DegreeEntry {
	return g.rank(n, func(id int) int { return len(adj[id]) })
}

func (g *Graph) rank(n int, degree func(id int) int) []DegreeEntry {
	if n <= 0 || len(g.names) == 0 {
		return []DegreeEntry{}
	}
	entries := make([]DegreeEntry, len(g.names))
	for id, name := range g.names {
		entries[id] = DegreeEntry{Name: name, Degree: degree(id)}
	}
	slices.SortStableFunc(entries, func(a, b DegreeEntry) int {
		return cmp.Compare(b.Degree, a.Degree)
	})
	return entries[:min(n, len(entries))]
}

// Roots returns packages nothing depends on via the given kinds.
func (g *Graph) Roots(kinds deps.KindSet) []string {
	var out []string
	for id, name := range g.names {
		if countKinds(g.in[id], kinds) == 0 {
			out = append(out, name)
		}
	}
	return out
}

// Leaves returns packages that depend on nothing via the given kinds.
func (g *Graph) Leaves(kinds deps.KindSet) []string {
	var out []string
	for id, name := range g.names {
		if countKinds(g.out[id], kinds) == 0 {
			out = append(out, name)
		}
	}
	return out
}

// Components counts weakly connected components over edges of the given
// kinds. Isolated packages are components of their own.
func (g *Graph) Components(kinds deps.KindSet) int {
	parent := make([]int32, len(g.names))
	for i := range parent {
		parent[i] = int32(i)
	}
	find := func(x int32) int32 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	n := len(g.names)
	for from, out := range g.out {
		for _, e := range out {
			if !kinds.Has(e.kind) {
				continue
			}
			a, b := find(int32(from)), find(e.to)
			if a != b {
				parent[a] = b
				n--
			}
		}
	}
	return n
}

// Density is the ratio of edges of the given kinds to the number of
// ordered node pairs. Parallel edges of different kinds count once.
func (g *Graph) Density(kinds deps.KindSet) float64 {
	n := len(g.names)
	if n < 2 {
		return 0
	}
	pairs := 0
	for from, out := range g.out {
		seen := map[int32]struct{}{}
		for _, e := range out {
			if !kinds.Has(e.kind) || e.to == int32(from) {
				continue
			}
			if _, ok := seen[e.to]; !ok {
				seen[e.to] = struct{}{}
				pairs++
			}
		}
	}
	return float64(pairs) / float64(n*(n-1))
}
