package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/depmap/pkg/deps"
	"github.com/matzehuels/depmap/pkg/graph"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds version and repository lines to node labels.
	Detailed bool
	// RankDir is the Graphviz rank direction; empty means "TB".
	RankDir string
}

var edgeStyle = map[deps.Kind]string{
	deps.KindRuntime: `style=solid`,
	deps.KindBuild:   `style=dashed, color="#4a6fa5"`,
	deps.KindCheck:   `style=dotted, color="#8a8a8a"`,
}

// repoColors cycles fill colours per repository in first-seen order.
var repoColors = []string{"#ffffff", "#eef6ee", "#f3eefa", "#fdf3e7", "#e9f3fb"}

// ToDOT converts a subgraph to DOT source. Output is deterministic: nodes
// and edges follow the subgraph's order.
func ToDOT(sg *graph.Subgraph, opts Options) string {
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "TB"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [arrowsize=0.7];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n\n")

	colors := map[string]string{}
	for _, n := range sg.Nodes {
		if _, ok := colors[n.Repository]; !ok {
			colors[n.Repository] = repoColors[len(colors)%len(repoColors)]
		}
		attrs := []string{fmt.Sprintf("label=%q", label(n, opts.Detailed))}
		if n.Root {
			attrs = append(attrs, `fillcolor="#ffd866"`, "penwidth=2")
		} else if c := colors[n.Repository]; c != "#ffffff" {
			attrs = append(attrs, fmt.Sprintf("fillcolor=%q", c))
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.Name, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range sg.Edges {
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, edgeStyle[e.Kind])
	}
	buf.WriteString("}\n")
	return buf.String()
}

func label(n graph.Node, detailed bool) string {
	if !detailed {
		return n.Name
	}
	parts := []string{n.Name}
	if n.Version != "" {
		parts = append(parts, n.Version)
	}
	if n.Repository != "" {
		parts = append(parts, n.Repository)
	}
	return strings.Join(parts, "\n")
}

// RenderSVG lays out DOT source with Graphviz and returns SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with a
// pixel-sized one so browsers scale the diagram.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
