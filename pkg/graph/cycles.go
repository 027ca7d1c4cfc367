package graph

import (
	"cmp"
	"context"
	"slices"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/errors"
)

// Cycle is one strongly connected group of packages.
type Cycle struct {
	// Path is a shortest closed loop through the group's first-inserted
	// member: Path[0] -> Path[1] -> ... -> Path[0].
	Path []string `json:"path"`
	// Members lists every package of the group in insertion order.
	Members []string `json:"members"`
}

// DetectCycles finds every dependency cycle over edges of the given kinds.
// Each strongly connected component with more than one member, or with a
// self-loop, yields one Cycle. Cycles are ordered by their first member.
//
// The search is an iterative Tarjan SCC, so deep graphs cannot overflow the
// stack. ctx is checked at every node expansion.
func (g *Graph) DetectCycles(ctx context.Context, kinds deps.KindSet) ([]Cycle, error) {
	sccs, err := g.components(ctx, kinds)
	if err != nil {
		return nil, err
	}

	var cycles []Cycle
	for _, comp := range sccs {
		if len(comp) == 1 && !g.hasSelfLoop(comp[0], kinds) {
			continue
		}
		slices.Sort(comp)
		members := make([]string, len(comp))
		for i, id := range comp {
			members[i] = g.names[id]
		}
		path, err := g.loopThrough(ctx, comp, kinds)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, Cycle{Path: path, Members: members})
	}
	slices.SortFunc(cycles, func(a, b Cycle) int {
		return cmp.Compare(g.index[a.Members[0]], g.index[b.Members[0]])
	})
	return cycles, nil
}

type tarjanFrame struct {
	v    int32
	next int
}

// components returns the strongly connected components of the subgraph
// restricted to kinds.
func (g *Graph) components(ctx context.Context, kinds deps.KindSet) ([][]int32, error) {
	n := len(g.names)
	index := make([]int32, n)
	low := make([]int32, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var (
		stack   []int32
		sccs    [][]int32
		counter int32
	)
	visit := func(v int32) {
		index[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
	}

	for s := range n {
		if index[s] != -1 {
			continue
		}
		visit(int32(s))
		call := []tarjanFrame{{v: int32(s)}}

		for len(call) > 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Canceled(err)
			}
			f := &call[len(call)-1]
			v := f.v
			descended := false
			for f.next < len(g.out[v]) {
				e := g.out[v][f.next]
				f.next++
				if !kinds.Has(e.kind) {
					continue
				}
				w := e.to
				if index[w] == -1 {
					visit(w)
					call = append(call, tarjanFrame{v: w})
					descended = true
					break
				}
				if onStack[w] {
					low[v] = min(low[v], index[w])
				}
			}
			if descended {
				continue
			}

			if low[v] == index[v] {
				var comp []int32
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, comp)
			}
			call = call[:len(call)-1]
			if len(call) > 0 {
				p := call[len(call)-1].v
				low[p] = min(low[p], low[v])
			}
		}
	}
	return sccs, nil
}

func (g *Graph) hasSelfLoop(v int32, kinds deps.KindSet) bool {
	for _, e := range g.out[v] {
		if e.to == v && kinds.Has(e.kind) {
			return true
		}
	}
	return false
}

// loopThrough returns a shortest closed walk from the first member of a
// sorted component back to itself, staying inside the component.
func (g *Graph) loopThrough(ctx context.Context, comp []int32, kinds deps.KindSet) ([]string, error) {
	start := comp[0]
	inComp := make(map[int32]struct{}, len(comp))
	for _, id := range comp {
		inComp[id] = struct{}{}
	}

	parent := map[int32]int32{start: -1}
	queue := []int32{start}
	for head := 0; head < len(queue); head++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Canceled(err)
		}
		u := queue[head]
		for _, e := range g.out[u] {
			if !kinds.Has(e.kind) {
				continue
			}
			if e.to == start {
				return g.unwind(parent, u), nil
			}
			if _, ok := inComp[e.to]; !ok {
				continue
			}
			if _, ok := parent[e.to]; ok {
				continue
			}
			parent[e.to] = u
			queue = append(queue, e.to)
		}
	}
	// Unreachable for a genuine component.
	return []string{g.names[start]}, nil
}
