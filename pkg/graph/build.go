package graph

import (
	"fmt"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
)

type edgeKey struct {
	from, to int32
	kind     deps.Kind
}

type unresolvedKey struct {
	from int32
	name string
	kind deps.Kind
}

// Build assembles an immutable graph from a complete package set.
//
// Packages are registered in input order and the first occurrence of a name
// wins; later ones are reported as DUPLICATE_NAME warnings. Provides aliases
// are indexed next, again first claimant wins (DUPLICATE_ALIAS). Finally each
// dependency token is resolved by exact name, then by alias; a match becomes
// a typed edge (same-kind duplicates collapse) and a miss becomes one
// Unresolved record per (package, name, kind).
//
// Build fails with EMPTY_INPUT for an empty set and INVALID_PACKAGE for a
// record without a name. A failed build returns no graph.
func Build(pkgs []deps.Package) (*Graph, error) {
	if len(pkgs) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "no packages to build a graph from")
	}

	g := &Graph{
		index:   make(map[string]int32, len(pkgs)),
		aliases: make(map[string]int32),
	}

	for i := range pkgs {
		p := &pkgs[i]
		if p.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidPackage, "package #%d (%s) has no name", i, p.Path)
		}
		if kept, dup := g.index[p.Name]; dup {
			g.report.Warnings = append(g.report.Warnings, Warning{
				Code:    errors.ErrCodeDuplicateName,
				Name:    p.Name,
				Kept:    describe(&g.pkgs[kept]),
				Dropped: describe(p),
				Message: fmt.Sprintf("package %q declared more than once; keeping %s", p.Name, describe(&g.pkgs[kept])),
			})
			continue
		}
		g.index[p.Name] = int32(len(g.names))
		g.names = append(g.names, p.Name)
		g.pkgs = append(g.pkgs, p.Clone())
	}

	g.indexAliases()
	g.out = make([][]edge, len(g.names))
	g.in = make([][]edge, len(g.names))
	g.linkDependencies()
	return g, nil
}

func (g *Graph) indexAliases() {
	for id := range g.pkgs {
		for _, tok := range g.pkgs[id].Provides {
			alias := deps.BareName(tok)
			if alias == "" {
				continue
			}
			if _, isNode := g.index[alias]; isNode {
				continue
			}
			owner, claimed := g.aliases[alias]
			if !claimed {
				g.aliases[alias] = int32(id)
				continue
			}
			if owner == int32(id) {
				continue
			}
			g.report.Warnings = append(g.report.Warnings, Warning{
				Code:    errors.ErrCodeDuplicateAlias,
				Name:    alias,
				Kept:    g.names[owner],
				Dropped: g.names[id],
				Message: fmt.Sprintf("alias %q provided by %s and %s; keeping %s", alias, g.names[owner], g.names[id], g.names[owner]),
			})
		}
	}
}

func (g *Graph) linkDependencies() {
	seen := make(map[edgeKey]struct{})
	missing := make(map[unresolvedKey]struct{})

	for id := range g.pkgs {
		from := int32(id)
		p := &g.pkgs[id]
		for _, kind := range deps.Kinds {
			for _, tok := range p.Dependencies[kind] {
				name := deps.BareName(tok)
				if name == "" {
					continue
				}
				to, ok := g.resolve(name)
				if !ok {
					key := unresolvedKey{from: from, name: name, kind: kind}
					if _, dup := missing[key]; dup {
						continue
					}
					missing[key] = struct{}{}
					g.report.Unresolved = append(g.report.Unresolved, Unresolved{
						From: p.Name, Token: tok, Name: name, Kind: kind,
					})
					continue
				}
				key := edgeKey{from: from, to: to, kind: kind}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				g.out[from] = append(g.out[from], edge{to: to, kind: kind})
				g.in[to] = append(g.in[to], edge{to: from, kind: kind})
				g.edgeCount++
				g.kindCounts[kind]++
			}
		}
	}
}

func describe(p *deps.Package) string {
	if p.Path != "" {
		return fmt.Sprintf("%s (%s)", p.Name, p.Path)
	}
	return p.Name
}
