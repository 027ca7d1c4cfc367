package graph

import (
	"fmt"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
)

// Edge is a typed dependency edge: From needs To in phase Kind.
type Edge struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Kind deps.Kind `json:"kind"`
}

// Neighbor is one end of a direct edge as seen from a queried node.
type Neighbor struct {
	Name string    `json:"name"`
	Kind deps.Kind `json:"kind"`
}

// Warning is a non-fatal condition found while building a graph.
type Warning struct {
	Code    errors.Code `json:"code"`    // ErrCodeDuplicateName or ErrCodeDuplicateAlias
	Name    string      `json:"name"`    // duplicated package name or alias
	Kept    string      `json:"kept"`    // package that keeps the name
	Dropped string      `json:"dropped"` // package whose claim was ignored
	Message string      `json:"message"`
}

// Unresolved records a dependency token that matched neither a package name
// nor a provides alias. It never becomes an edge.
type Unresolved struct {
	From  string    `json:"from"`
	Token string    `json:"token"`
	Name  string    `json:"name"`
	Kind  deps.Kind `json:"kind"`
}

// Report collects the diagnostics of a successful build.
type Report struct {
	Warnings   []Warning    `json:"warnings,omitempty"`
	Unresolved []Unresolved `json:"unresolved,omitempty"`
}

// edge is an adjacency entry; to is the far end for both directions.
type edge struct {
	to   int32
	kind deps.Kind
}

// Graph is an immutable typed dependency graph.
//
// Nodes keep the order in which packages were first seen, and adjacency
// lists keep edge insertion order, so every query result is deterministic.
// A Graph has no mutating methods and is safe for concurrent readers.
type Graph struct {
	names   []string
	index   map[string]int32
	pkgs    []deps.Package
	out     [][]edge
	in      [][]edge
	aliases map[string]int32
	report  Report

	edgeCount  int
	kindCounts [deps.KindCheck + 1]int
}

// NodeCount returns the number of packages.
func (g *Graph) NodeCount() int { return len(g.names) }

// EdgeCount returns the number of typed edges.
func (g *Graph) EdgeCount() int { return g.edgeCount }

// Names returns all package names in insertion order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Has reports whether a package with this exact name exists.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Package returns a copy of the named package record.
func (g *Graph) Package(name string) (deps.Package, error) {
	id, err := g.lookup(name)
	if err != nil {
		return deps.Package{}, err
	}
	return g.pkgs[id].Clone(), nil
}

// Packages returns copies of all package records in insertion order.
// Building a graph from the result yields an identical graph.
func (g *Graph) Packages() []deps.Package {
	out := make([]deps.Package, len(g.pkgs))
	for i := range g.pkgs {
		out[i] = g.pkgs[i].Clone()
	}
	return out
}

// Resolve maps a name or provides alias to the package that satisfies it.
// Exact package names win over aliases.
func (g *Graph) Resolve(name string) (string, bool) {
	if id, ok := g.resolve(deps.BareName(name)); ok {
		return g.names[id], true
	}
	return "", false
}

// Aliases returns the number of distinct provides aliases indexed.
func (g *Graph) Aliases() int { return len(g.aliases) }

// Report returns the warnings and unresolved records of the build.
func (g *Graph) Report() Report {
	r := Report{
		Warnings:   make([]Warning, len(g.report.Warnings)),
		Unresolved: make([]Unresolved, len(g.report.Unresolved)),
	}
	copy(r.Warnings, g.report.Warnings)
	copy(r.Unresolved, g.report.Unresolved)
	return r
}

// Edges returns every edge, grouped by source in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for from, es := range g.out {
		for _, e := range es {
			out = append(out, Edge{From: g.names[from], To: g.names[e.to], Kind: e.kind})
		}
	}
	return out
}

// Dependencies returns the direct dependencies of name restricted to kinds,
// in declaration order. The same target appears once per kind.
func (g *Graph) Dependencies(name string, kinds deps.KindSet) ([]Neighbor, error) {
	id, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return g.neighbors(g.out[id], kinds), nil
}

// ReverseDependencies returns the packages that depend directly on name.
func (g *Graph) ReverseDependencies(name string, kinds deps.KindSet) ([]Neighbor, error) {
	id, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return g.neighbors(g.in[id], kinds), nil
}

// InDegree returns the number of edges of the given kinds pointing at name.
func (g *Graph) InDegree(name string, kinds deps.KindSet) int {
	id, ok := g.index[name]
	if !ok {
		return 0
	}
	return countKinds(g.in[id], kinds)
}

// OutDegree returns the number of edges of the given kinds leaving name.
func (g *Graph) OutDegree(name string, kinds deps.KindSet) int {
	id, ok := g.index[name]
	if !ok {
		return 0
	}
	return countKinds(g.out[id], kinds)
}

func (g *Graph) neighbors(es []edge, kinds deps.KindSet) []Neighbor {
	out := make([]Neighbor, 0, len(es))
	for _, e := range es {
		if kinds.Has(e.kind) {
			out = append(out, Neighbor{Name: g.names[e.to], Kind: e.kind})
		}
	}
	return out
}

func countKinds(es []edge, kinds deps.KindSet) int {
	n := 0
	for _, e := range es {
		if kinds.Has(e.kind) {
			n++
		}
	}
	return n
}

func (g *Graph) lookup(name string) (int32, error) {
	id, ok := g.index[name]
	if !ok {
		return 0, errors.New(errors.ErrCodePackageNotFound, "package %q not found", name)
	}
	return id, nil
}

func (g *Graph) resolve(name string) (int32, bool) {
	if id, ok := g.index[name]; ok {
		return id, true
	}
	id, ok := g.aliases[name]
	return id, ok
}

// String summarizes the graph size.
func (g *Graph) String() string {
	return fmt.Sprintf("graph(%d packages, %d edges)", len(g.names), g.edgeCount)
}
