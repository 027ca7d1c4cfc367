package graph

import (
	"context"
	"strings"

	"github.com/matzehuels/depmap/pkg/deps"
)

// Node is a package as it appears in an exported subgraph.
type Node struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	Repository string `json:"repository,omitempty"`
	Depth      int    `json:"depth"`
	Root       bool   `json:"root,omitempty"`
}

// Subgraph is the neighbourhood of a package: the nodes of a traversal and
// every edge of the selected kinds between them.
type Subgraph struct {
	Root    string `json:"root"`
	Reverse bool   `json:"reverse"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Subgraph collects the packages within depth hops of name (dependencies,
// or dependents when reverse is set) and the edges among them. Edges are
// always reported in dependency direction.
func (g *Graph) Subgraph(ctx context.Context, name string, kinds deps.KindSet, depth int, reverse bool) (*Subgraph, error) {
	t, err := g.traverse(ctx, name, kinds, depth, reverse)
	if err != nil {
		return nil, err
	}

	sg := &Subgraph{Root: name, Reverse: reverse, Nodes: make([]Node, 0, len(t.Nodes))}
	members := make(map[int32]struct{}, len(t.Nodes))
	for _, r := range t.Nodes {
		id := g.index[r.Name]
		members[id] = struct{}{}
		p := &g.pkgs[id]
		sg.Nodes = append(sg.Nodes, Node{
			Name:       r.Name,
			Version:    p.FullVersion(),
			Repository: p.Repository,
			Depth:      r.Depth,
			Root:       r.Depth == 0,
		})
	}
	for _, r := range t.Nodes {
		from := g.index[r.Name]
		for _, e := range g.out[from] {
			if !kinds.Has(e.kind) {
				continue
			}
			if _, ok := members[e.to]; ok {
				sg.Edges = append(sg.Edges, Edge{From: r.Name, To: g.names[e.to], Kind: e.kind})
			}
		}
	}
	return sg, nil
}

// Search returns up to limit package names containing query, case
// insensitively. Exact matches rank first, then prefix matches, then the
// rest, each group in insertion order. limit <= 0 means no limit.
func (g *Graph) Search(query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var exact, prefix, contains []string
	for _, name := range g.names {
		lower := strings.ToLower(name)
		switch {
		case lower == q:
			exact = append(exact, name)
		case strings.HasPrefix(lower, q):
			prefix = append(prefix, name)
		case strings.Contains(lower, q):
			contains = append(contains, name)
		}
	}
	out := append(append(exact, prefix...), contains...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
