package io

import (
	"encoding/json"
	"io"
	"os"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
	"github.com/matzehuels/depmap/pkg/graph"
)

// ReadPackages decodes a package set document from r.
//
// The document must carry the [PackagesFormat] marker and a version no newer
// than [FormatVersion]. Records are returned as written; no validation beyond
// the envelope happens here, so [graph.Build] still reports records without
// a name. ReadPackages does not close r.
func ReadPackages(r io.Reader) ([]deps.Package, error) {
	var doc packageSet
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode package set")
	}
	if doc.Format != PackagesFormat {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unexpected document format %q", doc.Format)
	}
	if doc.Version < 1 || doc.Version > FormatVersion {
		return nil, errors.New(errors.ErrCodeUnsupported, "package set version %d not supported", doc.Version)
	}
	return doc.Packages, nil
}

// ImportPackages reads a package set document from path.
func ImportPackages(path string) ([]deps.Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return ReadPackages(f)
}

// ReadGraph decodes a node-link document and builds a graph from it. Each
// edge becomes a dependency of its kind on the target's exact name, so the
// rebuilt graph has the same nodes and edges as the exported one. Edges
// naming unknown nodes are an INVALID_FORMAT error.
func ReadGraph(r io.Reader) (*graph.Graph, error) {
	var doc nodeLink
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode graph")
	}

	pkgs := make([]deps.Package, len(doc.Nodes))
	index := make(map[string]int, len(doc.Nodes))
	for i, n := range doc.Nodes {
		version, release := deps.SplitFullVersion(n.Version)
		pkgs[i] = deps.Package{
			Name:        n.ID,
			Version:     version,
			Release:     release,
			Repository:  n.Repository,
			Origin:      n.Origin,
			Description: n.Description,
		}
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}
	for _, e := range doc.Edges {
		from, ok := index[e.From]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "edge %s->%s: unknown node %q", e.From, e.To, e.From)
		}
		if _, ok := index[e.To]; !ok {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "edge %s->%s: unknown node %q", e.From, e.To, e.To)
		}
		if !e.Kind.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "edge %s->%s: missing kind", e.From, e.To)
		}
		pkgs[from].AddDeps(e.Kind, e.To)
	}
	return graph.Build(pkgs)
}
