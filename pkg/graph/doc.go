// Package graph builds and queries typed package dependency graphs.
//
// # Overview
//
// [Build] turns a complete set of [deps.Package] records into an immutable
// [Graph]: one node per package name, one typed [Edge] per resolved
// dependency, and a [Report] of everything that did not fit.
//
//	g, err := graph.Build(pkgs)
//	if err != nil {
//	    return err // EMPTY_INPUT or INVALID_PACKAGE
//	}
//	fmt.Println(len(g.Report().Unresolved), "unresolved")
//
// # Resolution
//
// A dependency token resolves first by exact package name, then through the
// alias index built from every package's provides list ("so:libz.so.1",
// "cmd:curl", "pc:zlib"). Version constraints are ignored. When two
// packages share a name or an alias the first one seen wins and the other
// claim is reported as a [Warning]. Tokens that resolve to nothing are
// recorded as [Unresolved], once per (package, name, kind), and never
// become edges.
//
// # Queries
//
// Direct lookups ([Graph.Dependencies], [Graph.ReverseDependencies]) return
// neighbours in declaration order. Bounded breadth-first walks
// ([Graph.RecursiveDependencies], [Graph.RecursiveReverseDependencies])
// report each node once at its shortest depth and tolerate cycles.
// [Graph.ShortestPath] uses the same BFS; ties go to earlier-inserted edges.
// [Graph.DetectCycles] runs an iterative Tarjan SCC. Every query accepts a
// [deps.KindSet] so runtime, build and check edges can be examined apart.
//
// Long-running queries take a context and return a CANCELED error once it
// is done.
//
// # Concurrency
//
// A Graph never changes after Build returns. Any number of goroutines may
// query it at once without locking.
//
// [deps.Package]: github.com/matzehuels/depmap/pkg/deps.Package
// [deps.KindSet]: github.com/matzehuels/depmap/pkg/deps.KindSet
package graph
