package graph

import (
	"context"
	"math"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
)

// Unlimited is a depth large enough to reach every node.
const Unlimited = math.MaxInt32

// Reached is one node of a traversal.
type Reached struct {
	Name  string    `json:"name"`
	Depth int       `json:"depth"`
	Via   string    `json:"via,omitempty"`  // node it was discovered from; empty for the root
	Kind  deps.Kind `json:"kind,omitempty"` // kind of the discovering edge
}

// Traversal is the result of a bounded breadth-first walk. Every reachable
// node appears once, at its shortest distance from the root, in BFS order.
// Via links form a shortest-path tree rooted at Root.
type Traversal struct {
	Root     string    `json:"root"`
	Reverse  bool      `json:"reverse"`
	MaxDepth int       `json:"max_depth"`
	Nodes    []Reached `json:"nodes"`
}

// Names returns the names of all reached nodes except the root.
func (t *Traversal) Names() []string {
	out := make([]string, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		if n.Depth > 0 {
			out = append(out, n.Name)
		}
	}
	return out
}

// Depth returns the largest depth reached.
func (t *Traversal) Depth() int {
	d := 0
	for _, n := range t.Nodes {
		d = max(d, n.Depth)
	}
	return d
}

// Children returns the nodes discovered from name, in BFS order.
func (t *Traversal) Children(name string) []Reached {
	var out []Reached
	for _, n := range t.Nodes {
		if n.Via == name && n.Depth > 0 {
			out = append(out, n)
		}
	}
	return out
}

// RecursiveDependencies walks dependency edges of the given kinds from name
// up to maxDepth hops (inclusive). maxDepth 0 returns the root alone; a
// negative maxDepth is an INVALID_INPUT error. Cycles are harmless: each
// node is visited once. ctx is checked before every node expansion.
func (g *Graph) RecursiveDependencies(ctx context.Context, name string, kinds deps.KindSet, maxDepth int) (*Traversal, error) {
	return g.traverse(ctx, name, kinds, maxDepth, false)
}

// RecursiveReverseDependencies is RecursiveDependencies over reversed edges:
// everything that transitively needs name.
func (g *Graph) RecursiveReverseDependencies(ctx context.Context, name string, kinds deps.KindSet, maxDepth int) (*Traversal, error) {
	return g.traverse(ctx, name, kinds, maxDepth, true)
}

func (g *Graph) traverse(ctx context.Context, name string, kinds deps.KindSet, maxDepth int, reverse bool) (*Traversal, error) {
	if maxDepth < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "max depth must not be negative (got %d)", maxDepth)
	}
	root, err := g.lookup(name)
	if err != nil {
		return nil, err
	}

	adj := g.out
	if reverse {
		adj = g.in
	}

	t := &Traversal{Root: name, Reverse: reverse, MaxDepth: maxDepth}
	t.Nodes = append(t.Nodes, Reached{Name: name})
	queue := []int32{root}
	visited := map[int32]struct{}{root: {}}

	for head := 0; head < len(queue); head++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Canceled(err)
		}
		depth := t.Nodes[head].Depth
		if depth >= maxDepth {
			continue
		}
		u := queue[head]
		for _, e := range adj[u] {
			if !kinds.Has(e.kind) {
				continue
			}
			if _, ok := visited[e.to]; ok {
				continue
			}
			visited[e.to] = struct{}{}
			queue = append(queue, e.to)
			t.Nodes = append(t.Nodes, Reached{
				Name:  g.names[e.to],
				Depth: depth + 1,
				Via:   g.names[u],
				Kind:  e.kind,
			})
		}
	}
	return t, nil
}

// ShortestPath returns the shortest dependency chain from source to target
// following edges of the given kinds. Among equally short paths the one
// using earlier-inserted edges wins. A path from a node to itself is just
// [source]. Unknown endpoints yield PACKAGE_NOT_FOUND; unreachable targets
// yield NO_PATH.
func (g *Graph) ShortestPath(ctx context.Context, source, target string, kinds deps.KindSet) ([]string, error) {
	s, err := g.lookup(source)
	if err != nil {
		return nil, err
	}
	t, err := g.lookup(target)
	if err != nil {
		return nil, err
	}
	if s == t {
		return []string{source}, nil
	}

	parent := map[int32]int32{s: -1}
	queue := []int32{s}
	for head := 0; head < len(queue); head++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Canceled(err)
		}
		u := queue[head]
		for _, e := range g.out[u] {
			if !kinds.Has(e.kind) {
				continue
			}
			if _, ok := parent[e.to]; ok {
				continue
			}
			parent[e.to] = u
			if e.to == t {
				return g.unwind(parent, t), nil
			}
			queue = append(queue, e.to)
		}
	}
	return nil, errors.New(errors.ErrCodeNoPath, "no path from %q to %q", source, target)
}

// unwind follows parent links from v back to the BFS root.
func (g *Graph) unwind(parent map[int32]int32, v int32) []string {
	var rev []string
	for ; v >= 0; v = parent[v] {
		rev = append(rev, g.names[v])
	}
	out := make([]string, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}
