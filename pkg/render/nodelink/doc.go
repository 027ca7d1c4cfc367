// Package nodelink draws dependency subgraphs as Graphviz node-link
// diagrams.
//
// [ToDOT] turns a [graph.Subgraph] into DOT source; [RenderSVG] lays it out
// in-process with go-graphviz:
//
//	sg, _ := g.Subgraph(ctx, "curl", deps.AllKinds, 2, false)
//	dot := nodelink.ToDOT(sg, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Edge styles encode the dependency kind: runtime edges are solid, build
// edges dashed, check edges dotted. The subgraph root is filled, and in
// detailed mode labels carry the full version and repository.
//
// Full aports graphs are far too large to draw; callers render bounded
// neighbourhoods.
//
// [graph.Subgraph]: github.com/matzehuels/depmap/pkg/graph.Subgraph
package nodelink
