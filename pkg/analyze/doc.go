// Package analyze derives summary reports from a dependency graph.
//
// An [Analyzer] wraps an immutable [graph.Graph] together with the edge
// kinds to consider. Its methods answer the questions that come up when
// maintaining a distribution: how much does a package pull in, which
// packages everything hinges on, what a repository depends on outside
// itself, and what two packages share.
//
//	a := analyze.New(g, deps.AllKinds)
//	pa, err := a.AnalyzePackage(ctx, "curl")
//
// All methods are safe for concurrent use.
//
// [graph.Graph]: github.com/matzehuels/depmap/pkg/graph.Graph
package analyze
