package io

import (
	"encoding/json"
	"io"
	"os"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
)

const (
	// PackagesFormat identifies package set documents.
	PackagesFormat = "depmap/packages"
	// FormatVersion is the current document version.
	FormatVersion = 1
)

type packageSet struct {
	Format   string         `json:"format"`
	Version  int            `json:"version"`
	Packages []deps.Package `json:"packages"`
}

type nodeLink struct {
	Nodes      []node             `json:"nodes"`
	Edges      []graph.Edge       `json:"edges"`
	Unresolved []graph.Unresolved `json:"unresolved,omitempty"`
}

type node struct {
	ID          string `json:"id"`
	Version     string `json:"version,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Description string `json:"description,omitempty"`
}

// WritePackages encodes pkgs as an indented package set document.
func WritePackages(pkgs []deps.Package, w io.Writer) error {
	if pkgs == nil {
		pkgs = []deps.Package{}
	}
	return encode(w, packageSet{Format: PackagesFormat, Version: FormatVersion, Packages: pkgs})
}

// ExportPackages writes a package set document to path.
func ExportPackages(pkgs []deps.Package, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer f.Close()
	return WritePackages(pkgs, f)
}

// WriteGraph encodes g as a node-link document. Nodes and edges keep the
// graph's insertion order.
func WriteGraph(g *graph.Graph, w io.Writer) error {
	pkgs := g.Packages()
	out := nodeLink{
		Nodes:      make([]node, len(pkgs)),
		Edges:      g.Edges(),
		Unresolved: g.Report().Unresolved,
	}
	for i := range pkgs {
		p := &pkgs[i]
		out.Nodes[i] = node{
			ID:          p.Name,
			Version:     p.FullVersion(),
			Repository:  p.Repository,
			Origin:      p.Origin,
			Description: p.Description,
		}
	}
	if out.Edges == nil {
		out.Edges = []graph.Edge{}
	}
	return encode(w, out)
}

// WriteSubgraph encodes a subgraph as a node-link document.
func WriteSubgraph(sg *graph.Subgraph, w io.Writer) error {
	out := nodeLink{Nodes: make([]node, len(sg.Nodes)), Edges: sg.Edges}
	for i, n := range sg.Nodes {
		out.Nodes[i] = node{ID: n.Name, Version: n.Version, Repository: n.Repository}
	}
	if out.Edges == nil {
		out.Edges = []graph.Edge{}
	}
	return encode(w, out)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode")
	}
	return nil
}
